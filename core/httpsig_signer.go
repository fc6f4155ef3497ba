package core

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const httpSignatureHeaders = "(request-target) host date digest"

// HTTPSignatureSigner produces draft-cavage style HTTP message signatures
// over outgoing activity requests: a SHA-256 Digest of the body, a canonical
// signing string covering request target, host, date, and digest, signed
// RSA-SHA256 with the actor's private key.
//
// Sign recomputes everything on every call. Retries must re-sign with a
// fresh Date because remote servers reject stale ones.
type HTTPSignatureSigner struct {
	Now func() time.Time
}

func (s *HTTPSignatureSigner) Sign(_ context.Context, req *http.Request, keys ActorKeys) error {
	if req == nil {
		return fmt.Errorf("core: http request is required")
	}
	if err := keys.Validate(); err != nil {
		return err
	}
	privateKey, err := ParseActorPrivateKey(keys.PrivateKeyPEM)
	if err != nil {
		return err
	}

	body, err := requestBody(req)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(body)
	digestHeader := "SHA-256=" + base64.StdEncoding.EncodeToString(digest[:])

	date := s.now().Format(http.TimeFormat)
	host := req.Host
	if host == "" && req.URL != nil {
		host = req.URL.Host
	}
	if host == "" {
		return fmt.Errorf("core: request host is required for signing")
	}

	signingString := buildSigningString(req, host, date, digestHeader)
	hashed := sha256.Sum256([]byte(signingString))
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return fmt.Errorf("core: sign request: %w", err)
	}

	req.Header.Set("Date", date)
	req.Header.Set("Digest", digestHeader)
	req.Header.Set("Signature", fmt.Sprintf(
		"keyId=%q,algorithm=%q,headers=%q,signature=%q",
		keys.KeyID,
		"rsa-sha256",
		httpSignatureHeaders,
		base64.StdEncoding.EncodeToString(signature),
	))
	return nil
}

func (s *HTTPSignatureSigner) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func buildSigningString(req *http.Request, host string, date string, digest string) string {
	target := "/"
	if req.URL != nil && req.URL.RequestURI() != "" {
		target = req.URL.RequestURI()
	}
	lines := []string{
		"(request-target): " + strings.ToLower(req.Method) + " " + target,
		"host: " + host,
		"date: " + date,
		"digest: " + digest,
	}
	return strings.Join(lines, "\n")
}

func requestBody(req *http.Request) ([]byte, error) {
	if req.GetBody != nil {
		reader, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("core: read request body for digest: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	}
	if req.Body == nil {
		return nil, nil
	}
	return nil, fmt.Errorf("core: request body must be replayable for digest computation")
}

// ParseActorPrivateKey decodes a PEM-encoded RSA private key in either
// PKCS#1 or PKCS#8 form.
func ParseActorPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrKeysUnprovisioned)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysUnprovisioned, err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrKeysUnprovisioned, parsed)
	}
	return rsaKey, nil
}

var _ RequestSigner = (*HTTPSignatureSigner)(nil)
