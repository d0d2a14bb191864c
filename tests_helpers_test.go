// tests_helpers_test.go

package gourdianauth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testSymmetricKey = "test-secret-32-bytes-long-1234567890"

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testPrincipal() Principal {
	return Principal{ID: uuid.New(), Login: "alice", Role: "admin"}
}

func testConfig() Config {
	config := DefaultConfig(testSymmetricKey)
	config.Issuer = "test-issuer"
	config.Audience = []string{"test-audience"}
	return config
}

func newTestCoordinator(t *testing.T, registry SessionRegistry, opts ...Option) *Coordinator {
	t.Helper()

	coordinator, err := NewCoordinator(testConfig(), registry, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coordinator.Close() })
	return coordinator
}

// fixedTokenSource returns a generator that always yields the same refresh token.
func fixedTokenSource(t *testing.T) func() (string, error) {
	t.Helper()

	token, err := newRefreshToken()
	require.NoError(t, err)
	return func() (string, error) { return token, nil }
}

func testRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func writePEM(t *testing.T, name, blockType string, der []byte, perm os.FileMode) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), perm)
	require.NoError(t, err)
	return path
}

func generateTempRSAPair(t *testing.T) (privatePath, publicPath string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePath = writePEM(t, "private.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(privateKey), 0600)

	publicBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	publicPath = writePEM(t, "public.pem", "PUBLIC KEY", publicBytes, 0644)

	return privatePath, publicPath
}

func generateTempECDSAPair(t *testing.T) (privatePath, publicPath string) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privateBytes, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	privatePath = writePEM(t, "ec_private.pem", "EC PRIVATE KEY", privateBytes, 0600)

	publicBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	publicPath = writePEM(t, "ec_public.pem", "PUBLIC KEY", publicBytes, 0644)

	return privatePath, publicPath
}

func generateTempEd25519Pair(t *testing.T) (privatePath, publicPath string) {
	t.Helper()

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	privateBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	require.NoError(t, err)
	privatePath = writePEM(t, "ed_private.pem", "PRIVATE KEY", privateBytes, 0600)

	publicBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	require.NoError(t, err)
	publicPath = writePEM(t, "ed_public.pem", "PUBLIC KEY", publicBytes, 0644)

	return privatePath, publicPath
}

func generateTempCertificate(t *testing.T) (privatePath, publicPath string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(time.Hour),
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	privatePath = writePEM(t, "cert_private.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(privateKey), 0600)
	publicPath = writePEM(t, "cert_public.pem", "CERTIFICATE", certBytes, 0644)

	return privatePath, publicPath
}
