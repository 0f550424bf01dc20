package tls

import (
	"context"
	gotls "crypto/tls"

	"http-keepalive/transport"

	"github.com/pkg/errors"
	utls "github.com/refraction-networking/utls"
)

var ErrUnknownFingerprint = errors.New("unknown tls fingerprint")

var fingerprints = map[string]*utls.ClientHelloID{
	"chrome":     &utls.HelloChrome_Auto,
	"firefox":    &utls.HelloFirefox_Auto,
	"safari":     &utls.HelloSafari_Auto,
	"ios":        &utls.HelloIOS_Auto,
	"android":    &utls.HelloAndroid_11_OkHttp,
	"edge":       &utls.HelloEdge_Auto,
	"golang":     &utls.HelloGolang,
	"randomized": &utls.HelloRandomizedALPN,
}

// GetFingerprint finds a ClientHello fingerprint by its short name (e.g. "chrome").
func GetFingerprint(name string) (*utls.ClientHelloID, error) {
	fingerprint, ok := fingerprints[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownFingerprint, name)
	}
	return fingerprint, nil
}

type utlsUpgrader struct {
	fingerprint *utls.ClientHelloID
}

var _ Upgrader = (*utlsUpgrader)(nil)

// NewUTLSUpgrader upgrades with a ClientHello that mimics fingerprint.
func NewUTLSUpgrader(fingerprint *utls.ClientHelloID) Upgrader {
	return &utlsUpgrader{fingerprint: fingerprint}
}

func (u *utlsUpgrader) Upgrade(ctx context.Context, conn transport.Conn, serverName string, config *gotls.Config) (transport.Conn, error) {
	cfg := clientConfig(config, serverName)

	uc := utls.UClient(transport.AsNetConn(conn), copyConfig(cfg), *u.fingerprint)
	if err := u.handshake(ctx, uc); err != nil {
		return nil, errors.Wrap(err, "utls handshake")
	}

	return rewrap(conn, uc), nil
}

// handshake only offers http/1.1 in ALPN, whatever the fingerprint says.
func (u *utlsUpgrader) handshake(ctx context.Context, uc *utls.UConn) error {
	if *u.fingerprint == utls.HelloGolang {
		// Built from config, which already carries NextProtos.
		return uc.HandshakeContext(ctx)
	}

	if err := uc.BuildHandshakeState(); err != nil {
		return err
	}

	hasALPN := false
	for _, ext := range uc.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			hasALPN = true
			alpn.AlpnProtocols = []string{"http/1.1"}
			break
		}
	}
	if !hasALPN {
		uc.Extensions = append(uc.Extensions, &utls.ALPNExtension{AlpnProtocols: []string{"http/1.1"}})
	}

	// Rebuild the client hello with modified extensions.
	if err := uc.BuildHandshakeState(); err != nil {
		return err
	}

	return uc.HandshakeContext(ctx)
}

func copyConfig(c *gotls.Config) *utls.Config {
	return &utls.Config{
		RootCAs:               c.RootCAs,
		ServerName:            c.ServerName,
		InsecureSkipVerify:    c.InsecureSkipVerify,
		VerifyPeerCertificate: c.VerifyPeerCertificate,
		NextProtos:            c.NextProtos,
	}
}
