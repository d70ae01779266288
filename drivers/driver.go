// Package drivers provides the afero-backed ftpproto.Driver used by
// cmd/wfded: per-account authentication against an entity.Host's
// effective Permissions, served off a single afero.Fs.
//
// Grounded on _examples/fclairamb-ftpserverlib/drivers/files_driver.go's
// FilesDriver (account list, self-signed certificate generation), rewired
// from its now-obsolete ClientHandlingDriver/ClientContext API onto
// ftpproto.Driver: virtual path resolution, listing, and file I/O are
// entirely handled by internal/vpath, internal/vfile and internal/listing
// against the afero.Fs this driver exposes, so ClientDriver's per-call
// ChangeDirectory/OpenFile/ChmodFile surface has no remaining role.
package drivers

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/jgaa/wfde/entity"
	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/vpath"
)

// ErrInvalidCredentials is returned by Authenticate on a username/password
// mismatch.
var ErrInvalidCredentials = errors.New("drivers: invalid username or password")

// Account is one configured login: Home names a vpath that must already be
// registered (directly or via a recursive ancestor) in the owning Host's
// effective Permissions.
type Account struct {
	User string
	Pass string
	Home string
}

// AferoDriver implements ftpproto.Driver (Authenticate/Filesystem/Banner)
// plus the optional Chmod/Symlink/AvailableSpace extensions, scoped to one
// entity.Host: every authenticated session's permissions are the host's
// EffectivePermissions, rolled up through entity.Build's Server/Host chain.
type AferoDriver struct {
	Host     *entity.Host
	Fs       afero.Fs
	Accounts []Account
	BannerFn string

	mu        sync.Mutex
	tlsConfig *tls.Config
}

// Authenticate checks username/password against Accounts and, on success,
// returns the authenticated Client plus the host's effective Permissions
// (spec.md §4.1, §4.9).
func (d *AferoDriver) Authenticate(username, password string) (*session.Client, *vpath.Permissions, error) {
	for _, acct := range d.Accounts {
		if acct.User != username || acct.Pass != password {
			continue
		}

		perms := d.Host.EffectivePermissions()

		var home *vpath.Path
		if acct.Home != "" {
			if p, _, err := perms.GetPath(acct.Home); err == nil {
				home = p
			}
		}

		return &session.Client{Username: username, Home: home}, perms, nil
	}

	return nil, nil, ErrInvalidCredentials
}

// Filesystem returns the afero.Fs every mount's physical path is resolved
// against.
func (d *AferoDriver) Filesystem() afero.Fs { return d.Fs }

// Banner is sent as the 220 greeting; falls back to a generic message.
func (d *AferoDriver) Banner() string {
	if d.BannerFn != "" {
		return d.BannerFn
	}

	return fmt.Sprintf("wfde ready, host %q", d.Host.Name())
}

// TLSConfig lazily generates a self-signed certificate on first use, the
// same live-generation approach as FilesDriver.GetTLSConfig/getCertificate:
// a real deployment should instead load a certificate from disk via
// tls.LoadX509KeyPair and set AferoDriver up with that *tls.Config
// directly.
func (d *AferoDriver) TLSConfig() (*tls.Config, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tlsConfig != nil {
		return d.tlsConfig, nil
	}

	cert, err := selfSignedCert()
	if err != nil {
		return nil, fmt.Errorf("drivers: generate certificate: %w", err)
	}

	d.tlsConfig = &tls.Config{
		NextProtos:   []string{"ftp"},
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}

	return d.tlsConfig, nil
}

func selfSignedCert() (*tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	now := time.Now().UTC()

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "localhost",
			Organization: []string{"wfde"},
		},
		DNSNames:              []string{"localhost"},
		SignatureAlgorithm:    x509.SHA256WithRSA,
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour * 24 * 365),
		BasicConstraintsValid: true,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	var certPem, keyPem bytes.Buffer
	if err := pem.Encode(&certPem, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return nil, err
	}

	if err := pem.Encode(&keyPem, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}); err != nil {
		return nil, err
	}

	pair, err := tls.X509KeyPair(certPem.Bytes(), keyPem.Bytes())

	return &pair, err
}
