package proxy

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func TestIssueForSignsWithCA(t *testing.T) {
	ca, err := GenerateCertAuthority()
	if err != nil {
		t.Fatalf("generate ca: %v", err)
	}

	leaf, err := ca.IssueFor("example.com:443")
	if err != nil {
		t.Fatalf("issue leaf: %v", err)
	}
	cert, err := x509.ParseCertificate(leaf.Certificate[0])
	if err != nil {
		t.Fatalf("parse leaf: %v", err)
	}
	if err := cert.VerifyHostname("example.com"); err != nil {
		t.Fatalf("leaf does not cover host: %v", err)
	}

	block, _ := pem.Decode(ca.CertPEM())
	if block == nil {
		t.Fatalf("ca pem undecodable")
	}
	caCert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse ca: %v", err)
	}
	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	if _, err := cert.Verify(x509.VerifyOptions{Roots: roots}); err != nil {
		t.Fatalf("leaf does not chain to ca: %v", err)
	}
}

func TestIssueForCachesLeaves(t *testing.T) {
	ca, err := GenerateCertAuthority()
	if err != nil {
		t.Fatalf("generate ca: %v", err)
	}
	a, err := ca.IssueFor("example.com:443")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, err := ca.IssueFor("example.com")
	if err != nil {
		t.Fatalf("issue again: %v", err)
	}
	if string(a.Certificate[0]) != string(b.Certificate[0]) {
		t.Fatalf("expected the cached leaf for the same host")
	}
}

func TestIssueForIPHost(t *testing.T) {
	ca, err := GenerateCertAuthority()
	if err != nil {
		t.Fatalf("generate ca: %v", err)
	}
	leaf, err := ca.IssueFor("127.0.0.1:8443")
	if err != nil {
		t.Fatalf("issue for ip: %v", err)
	}
	cert, err := x509.ParseCertificate(leaf.Certificate[0])
	if err != nil {
		t.Fatalf("parse leaf: %v", err)
	}
	if len(cert.IPAddresses) == 0 {
		t.Fatalf("ip leaf must carry an IP SAN")
	}
}
