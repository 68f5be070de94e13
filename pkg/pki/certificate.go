package pki

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadCertificateFile parses every CERTIFICATE block in a PEM file.
func LoadCertificateFile(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %s: %w", path, err)
	}
	return ParseCertificatesPEM(data)
}

func ParseCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found in pem")
	}
	return certs, nil
}

// LoadCertificates reads every .pem file directly under dirPath. Files that
// fail to parse are reported in skipped rather than failing the whole load.
func LoadCertificates(dirPath string) (certs []*x509.Certificate, skipped map[string]error, err error) {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, nil, err
	}

	skipped = map[string]error{}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".pem") {
			continue
		}
		loaded, err := LoadCertificateFile(filepath.Join(dirPath, file.Name()))
		if err != nil {
			skipped[file.Name()] = err
			continue
		}
		certs = append(certs, loaded...)
	}
	return certs, skipped, nil
}

func EncodePEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}
