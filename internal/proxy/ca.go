package proxy

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"strings"
	"sync"
	"time"
)

// CertAuthority mints short-lived leaf certificates for intercepted hosts,
// signed by a capture-scoped CA the browser is told to trust.
type CertAuthority struct {
	caCert  *x509.Certificate
	caKey   *rsa.PrivateKey
	mu      sync.Mutex
	cache   map[string]tls.Certificate
	leafTTL time.Duration
}

// GenerateCertAuthority creates a fresh throwaway CA for one process
// lifetime. Nothing is persisted; the browser side runs with certificate
// verification disabled or with this CA injected.
func GenerateCertAuthority() (*CertAuthority, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	now := time.Now().Add(-5 * time.Minute)
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "scoop capture CA"},
		NotBefore:             now,
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &CertAuthority{
		caCert:  caCert,
		caKey:   key,
		cache:   make(map[string]tls.Certificate),
		leafTTL: 24 * time.Hour,
	}, nil
}

// CertPEM returns the CA certificate in PEM form, e.g. for browser trust
// stores.
func (ca *CertAuthority) CertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.caCert.Raw})
}

// IssueFor issues, or takes from cache, a leaf certificate for a host.
func (ca *CertAuthority) IssueFor(host string) (tls.Certificate, error) {
	h := strings.TrimSpace(host)
	if h == "" {
		return tls.Certificate{}, errors.New("proxy: empty host for certificate issuance")
	}
	if strings.Contains(h, ":") {
		if v, _, err := net.SplitHostPort(h); err == nil {
			h = v
		}
	}
	ca.mu.Lock()
	if cert, ok := ca.cache[h]; ok {
		ca.mu.Unlock()
		return cert, nil
	}
	ca.mu.Unlock()

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}
	now := time.Now().Add(-5 * time.Minute)
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: h},
		NotBefore:             now,
		NotAfter:              now.Add(ca.leafTTL),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{h},
	}
	if ip := net.ParseIP(h); ip != nil {
		tmpl.IPAddresses = []net.IP{ip}
		tmpl.DNSNames = nil
		tmpl.Subject = pkix.Name{CommonName: ip.String()}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.caCert, &leafKey.PublicKey, ca.caKey)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(leafKey)})
	leaf, err := tls.X509KeyPair(append(certPEM, ca.CertPEM()...), keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}
	ca.mu.Lock()
	ca.cache[h] = leaf
	ca.mu.Unlock()
	return leaf, nil
}
