package pki

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/exec"
	"github.com/srl-labs/pkilab/internal/toolsim"
	"github.com/srl-labs/pkilab/store"
)

func newTestManager(t *testing.T, sim *toolsim.Simulator) (*Manager, *store.Store, *exec.FakeRunner) {
	t.Helper()
	root := t.TempDir()
	s := store.New(filepath.Join(root, "pkis"), filepath.Join(root, "deployments"))
	runner := sim.Runner()

	m, err := NewManager(WithStore(s), WithRunner(runner))
	require.NoError(t, err)

	return m, s, runner
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	tree := map[string]string{}
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		if info.IsDir() {
			tree[rel+"/"] = ""
			return nil
		}
		b, err := os.ReadFile(p)
		tree[rel] = string(b)
		return err
	})
	require.NoError(t, err)
	return tree
}

func TestBootstrap(t *testing.T) {
	sim := toolsim.New()
	m, s, runner := newTestManager(t, sim)

	require.NoError(t, m.Bootstrap(context.Background(), "example"))

	p := s.PKI("example")
	for _, f := range append(p.TrustAnchorFiles(), p.CSRConfig()) {
		assert.FileExists(t, f)
	}
	assert.NoFileExists(t, p.IncompleteMarker())

	conf, err := os.ReadFile(p.CSRConfig())
	require.NoError(t, err)
	assert.Contains(t, string(conf), "CN = example.com")

	if d := cmp.Diff([]string{"req -x509", "genrsa", "req -new"}, sim.Invoked()); d != "" {
		t.Errorf("invocations mismatch (-want +got):\n%s", d)
	}
	for _, c := range runner.Calls() {
		assert.Equal(t, p.Dir(), c.Dir)
	}
	assert.Contains(t, runner.Calls()[0].GetCmd(), "/CN=example.com/C=UA/L=Kiev")
}

func TestBootstrapTwice(t *testing.T) {
	m, s, _ := newTestManager(t, toolsim.New())
	ctx := context.Background()

	require.NoError(t, m.Bootstrap(ctx, "example"))
	before := readTree(t, s.PKI("example").Dir())

	err := m.Bootstrap(ctx, "example")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkierrors.ErrAlreadyExists)

	if d := cmp.Diff(before, readTree(t, s.PKI("example").Dir())); d != "" {
		t.Errorf("first bootstrap artifacts changed (-before +after):\n%s", d)
	}
}

func TestBootstrapFailure(t *testing.T) {
	sim := toolsim.New()
	sim.Fail["genrsa"] = 1
	m, s, _ := newTestManager(t, sim)
	ctx := context.Background()

	err := m.Bootstrap(ctx, "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkierrors.ErrExternalToolFailure)

	p := s.PKI("broken")
	assert.FileExists(t, p.IncompleteMarker())
	assert.True(t, m.Incomplete("broken"))
	assert.NoFileExists(t, p.CSR())

	// the directory still guards against re-creation
	assert.ErrorIs(t, m.Bootstrap(ctx, "broken"), pkierrors.ErrAlreadyExists)
}

func TestBootstrapInvalidName(t *testing.T) {
	m, s, runner := newTestManager(t, toolsim.New())

	err := m.Bootstrap(context.Background(), "../escape")
	assert.ErrorIs(t, err, pkierrors.ErrIncorrectInput)
	assert.Empty(t, runner.Calls())
	assert.NoDirExists(t, s.PKIRoot)
}

func TestIssue(t *testing.T) {
	sim := toolsim.New()
	m, s, runner := newTestManager(t, sim)
	ctx := context.Background()

	require.NoError(t, m.Bootstrap(ctx, "example"))
	bootstrapCalls := len(runner.Calls())
	require.NoError(t, m.Issue(ctx, "example", "svc.example.com", "secret1"))

	p := s.PKI("example")
	fi, err := os.Stat(p.Keystore("svc.example.com"))
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), int64(0))
	assert.NoFileExists(t, p.PKCS12("svc.example.com"))
	assert.FileExists(t, p.ServerCert("svc.example.com"))

	conf, err := os.ReadFile(p.CertConfig("svc.example.com"))
	require.NoError(t, err)
	assert.Contains(t, string(conf), "DNS.1 = svc.example.com")

	// the passphrase never shows up in an argument vector
	for _, c := range runner.Calls()[bootstrapCalls:] {
		assert.NotContains(t, c.GetCmdString(), "secret1")
		assert.Equal(t, p.ServerDir("svc.example.com"), c.Dir, "command %q", c.GetCmdString())
		if strings.Contains(c.GetCmdString(), "pkcs12") {
			v, ok := c.Secret("PKILAB_KEYSTORE_PASS")
			assert.True(t, ok)
			assert.Equal(t, "secret1", v)
		}
	}
	// nothing was written to disk containing the passphrase
	for name, content := range readTree(t, p.Dir()) {
		assert.NotContains(t, content, "secret1", name)
	}

	results, err := m.Verify("example", time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "svc.example.com", results[0].Domain)
	assert.NoError(t, results[0].Err)
}

func TestIssueMissingTrustAnchor(t *testing.T) {
	files := map[string]func(p *store.PKIPaths) string{
		"root key":    func(p *store.PKIPaths) string { return p.RootKey() },
		"root cert":   func(p *store.PKIPaths) string { return p.RootCert() },
		"service key": func(p *store.PKIPaths) string { return p.ServiceKey() },
		"csr":         func(p *store.PKIPaths) string { return p.CSR() },
	}
	for name, file := range files {
		t.Run(name, func(t *testing.T) {
			m, s, runner := newTestManager(t, toolsim.New())
			ctx := context.Background()
			require.NoError(t, m.Bootstrap(ctx, "example"))

			p := s.PKI("example")
			missing := file(p)
			require.NoError(t, os.Remove(missing))
			calls := len(runner.Calls())

			err := m.Issue(ctx, "example", "svc.example.com", "secret1")
			require.Error(t, err)
			assert.ErrorIs(t, err, pkierrors.ErrMissingTrustAnchor)
			assert.Contains(t, err.Error(), missing)

			assert.NoDirExists(t, p.ServersDir())
			assert.Len(t, runner.Calls(), calls)
		})
	}
}

func TestIssueUnknownPKI(t *testing.T) {
	m, s, _ := newTestManager(t, toolsim.New())

	err := m.Issue(context.Background(), "nope", "svc.example.com", "secret1")
	assert.ErrorIs(t, err, pkierrors.ErrMissingTrustAnchor)
	assert.NoDirExists(t, s.PKI("nope").Dir())
}

func TestIssueShortPassphrase(t *testing.T) {
	m, s, _ := newTestManager(t, toolsim.New())
	ctx := context.Background()
	require.NoError(t, m.Bootstrap(ctx, "example"))

	err := m.Issue(ctx, "example", "svc.example.com", "12345")
	assert.ErrorIs(t, err, pkierrors.ErrIncorrectInput)
	assert.NoDirExists(t, s.PKI("example").ServersDir())
}

func TestIssueKeytoolFailureRemovesBundle(t *testing.T) {
	sim := toolsim.New()
	m, s, _ := newTestManager(t, sim)
	ctx := context.Background()
	require.NoError(t, m.Bootstrap(ctx, "example"))

	sim.Fail["keytool"] = 1
	err := m.Issue(ctx, "example", "svc.example.com", "secret1")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkierrors.ErrExternalToolFailure)

	p := s.PKI("example")
	assert.NoFileExists(t, p.PKCS12("svc.example.com"))
	assert.NoFileExists(t, p.Keystore("svc.example.com"))
	// partially written files are left in place
	assert.FileExists(t, p.ServerCert("svc.example.com"))
}

func TestReissue(t *testing.T) {
	m, s, _ := newTestManager(t, toolsim.New())
	ctx := context.Background()
	require.NoError(t, m.Bootstrap(ctx, "example"))

	require.NoError(t, m.Issue(ctx, "example", "svc.example.com", "secret1"))
	p := s.PKI("example")
	first, err := os.ReadFile(p.ServerCert("svc.example.com"))
	require.NoError(t, err)

	require.NoError(t, m.Issue(ctx, "example", "svc.example.com", "another-secret"))
	second, err := os.ReadFile(p.ServerCert("svc.example.com"))
	require.NoError(t, err)

	assert.NotEqual(t, string(first), string(second))
	assert.FileExists(t, p.Keystore("svc.example.com"))
	assert.NoFileExists(t, p.PKCS12("svc.example.com"))
}

func TestListAndStatus(t *testing.T) {
	sim := toolsim.New()
	m, _, _ := newTestManager(t, sim)
	ctx := context.Background()

	require.NoError(t, m.Bootstrap(ctx, "alpha"))
	require.NoError(t, m.Issue(ctx, "alpha", "a.example.com", "secret1"))
	sim.Fail["req -new"] = 2
	require.Error(t, m.Bootstrap(ctx, "beta"))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "alpha", list[0].Name)
	assert.True(t, list[0].Complete)
	require.NotNil(t, list[0].Root)
	assert.Equal(t, "alpha.com", list[0].Root.Subject.CommonName)
	require.Len(t, list[0].Servers, 1)
	assert.Equal(t, "a.example.com", list[0].Servers[0].Domain)
	assert.Greater(t, list[0].Servers[0].KeystoreSize, int64(0))
	require.NotNil(t, list[0].Servers[0].Cert)
	require.NotNil(t, list[0].LastSerial)
	assert.Zero(t, list[0].LastSerial.Cmp(list[0].Servers[0].Cert.SerialNumber),
		"last serial %X, certificate serial %X", list[0].LastSerial, list[0].Servers[0].Cert.SerialNumber)

	assert.Equal(t, "beta", list[1].Name)
	assert.False(t, list[1].Complete)
	assert.Len(t, list[1].Missing, 1)
	assert.Nil(t, list[1].LastSerial)
}

func TestStatusMalformedSerial(t *testing.T) {
	m, s, _ := newTestManager(t, toolsim.New())
	require.NoError(t, m.Bootstrap(context.Background(), "example"))
	require.NoError(t, os.WriteFile(s.PKI("example").Serial(), []byte("not hex\n"), 0o644))

	st, err := m.Status("example")
	require.NoError(t, err)
	assert.True(t, st.Complete)
	assert.Nil(t, st.LastSerial)
}

func TestVerifyDetectsForeignLeaf(t *testing.T) {
	m, s, _ := newTestManager(t, toolsim.New())
	ctx := context.Background()

	require.NoError(t, m.Bootstrap(ctx, "one"))
	require.NoError(t, m.Bootstrap(ctx, "two"))
	require.NoError(t, m.Issue(ctx, "two", "svc.example.com", "secret1"))

	// plant a certificate signed by "two" under "one"
	one, two := s.PKI("one"), s.PKI("two")
	require.NoError(t, os.MkdirAll(one.ServerDir("svc.example.com"), 0o755))
	b, err := os.ReadFile(two.ServerCert("svc.example.com"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(one.ServerCert("svc.example.com"), b, 0o644))

	results, err := m.Verify("one", time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)

	// expired at the time of verification
	results, err = m.Verify("two", time.Now().AddDate(2, 0, 0))
	require.NoError(t, err)
	assert.Error(t, results[0].Err)
}

func TestVerifyMismatchedRootKey(t *testing.T) {
	m, s, _ := newTestManager(t, toolsim.New())
	ctx := context.Background()
	require.NoError(t, m.Bootstrap(ctx, "example"))

	p := s.PKI("example")
	// the service key is a valid key, but not the root's
	b, err := os.ReadFile(p.ServiceKey())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.RootKey(), b, 0o600))

	_, err = m.Verify("example", time.Now())
	assert.Error(t, err)
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name    string
		version string
		fail    map[string]int
		wantErr bool
	}{
		{name: "openssl 3", version: toolsim.OpenSSLVersion},
		{name: "openssl 1.1.1 letter release", version: "OpenSSL 1.1.1w  11 Sep 2023"},
		{name: "libressl", version: "LibreSSL 3.3.6"},
		{name: "too old", version: "OpenSSL 1.0.2k-fips  26 Jan 2017", wantErr: true},
		{name: "no keytool", version: toolsim.OpenSSLVersion, fail: map[string]int{"keytool -help": 127}, wantErr: true},
		{name: "no openssl", fail: map[string]int{"version": 127}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := toolsim.New()
			sim.Version = tt.version
			for k, v := range tt.fail {
				sim.Fail[k] = v
			}
			m, _, _ := newTestManager(t, sim)

			_, err := m.Preflight(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Preflight() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToolkitValidate(t *testing.T) {
	assert.NoError(t, NewOpenSSLToolkit("openssl", "keytool", 3650, 365).Validate())
	assert.Error(t, NewOpenSSLToolkit("openssl", "keytool", 365, 365).Validate())
	assert.Error(t, NewOpenSSLToolkit("openssl", "keytool", 0, -1).Validate())

	_, err := NewManager(WithStore(store.New("a", "b")), WithToolkit(NewOpenSSLToolkit("openssl", "keytool", 356, 365)))
	assert.Error(t, err)
}

func TestToolkitCommands(t *testing.T) {
	tk := NewOpenSSLToolkit("openssl", "keytool", 3650, 365)

	want := []string{
		"openssl", "x509", "-req",
		"-in", "../../example.csr",
		"-CA", "../../example.crt",
		"-CAkey", "../../example.key",
		"-subj", "/C=UA/ST=Kiev Oblast/L=Something/O=Something Corp/OU=IT Dept/CN=svc.example.com",
		"-CAcreateserial",
		"-out", "svc.example.com.crt",
		"-days", "365",
		"-sha256",
		"-extfile", "cert.conf",
	}
	if d := cmp.Diff(want, tk.SignCmd("example", "svc.example.com").GetCmd()); d != "" {
		t.Errorf("SignCmd() mismatch (-want +got):\n%s", d)
	}

	jks := tk.JKSCmd("svc.example.com", "secret1")
	require.NoError(t, jks.Validate())
	assert.Equal(t, []string{"PKILAB_KEYSTORE_PASS=secret1"}, jks.Env())
}
