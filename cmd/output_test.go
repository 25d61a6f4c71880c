package cmd

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srl-labs/pkilab/deployment"
	"github.com/srl-labs/pkilab/pki"
)

var listNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testStatuses() []*pki.Status {
	return []*pki.Status{
		{
			Name:       "example",
			Complete:   true,
			Root:       &x509.Certificate{NotAfter: listNow.AddDate(10, 0, 0)},
			LastSerial: big.NewInt(0x2a),
			Servers: []*pki.ServerStatus{
				{
					Domain:       "svc.example.com",
					Cert:         &x509.Certificate{NotAfter: listNow.AddDate(1, 0, 0)},
					KeystoreSize: 2750,
				},
				{Domain: "broken.example.com"},
			},
		},
		{Name: "half", Missing: []string{"half.csr"}},
	}
}

func TestWritePKIsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePKIs(&buf, testStatuses(), "json", listNow))

	var got []PKIDetails
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	want := []PKIDetails{
		{
			PKI: "example", Complete: true, RootNotAfter: "2036-01-01T00:00:00Z", LastSerial: "2A",
			Domain: "svc.example.com", NotAfter: "2027-01-01T00:00:00Z", KeystoreSize: 2750,
		},
		{PKI: "example", Complete: true, RootNotAfter: "2036-01-01T00:00:00Z", LastSerial: "2A", Domain: "broken.example.com"},
		{PKI: "half"},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Fatalf("writePKIs() mismatch (-want +got):\n%s", d)
	}
}

func TestWritePKIsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePKIs(&buf, testStatuses(), "table", listNow))

	out := buf.String()
	assert.Contains(t, out, "svc.example.com")
	assert.Contains(t, out, "2.8 kB")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "incomplete")
	assert.Contains(t, out, "from now")
}

func TestWriteEmptyListings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePKIs(&buf, nil, "table", listNow))
	assert.Equal(t, "no PKIs found\n", buf.String())

	buf.Reset()
	require.NoError(t, writeDeployments(&buf, nil, "table"))
	assert.Equal(t, "no deployments found\n", buf.String())
}

func TestWriteDeployments(t *testing.T) {
	infos := []*deployment.Info{
		{Name: "web", Domain: "svc.example.com", Ports: []string{"8443:8443"}, Provisioned: true, Active: true},
	}

	var buf bytes.Buffer
	require.NoError(t, writeDeployments(&buf, infos, "table"))
	assert.Contains(t, buf.String(), "8443:8443")
	assert.Contains(t, buf.String(), "Active")

	assert.Error(t, writeDeployments(&buf, infos, "yaml"))
}
