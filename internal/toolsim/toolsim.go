// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package toolsim stands in for the openssl and keytool binaries in tests.
// It understands the argument vectors pkilab builds and produces real PEM
// material with crypto/x509, so the results can be inspected like the
// output of the real tools.
package toolsim

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/srl-labs/pkilab/exec"
)

// OpenSSLVersion is what `openssl version` reports.
const OpenSSLVersion = "OpenSSL 3.0.13 30 Jan 2024 (Library: OpenSSL 3.0.13 30 Jan 2024)"

// Simulator handles openssl and keytool invocations.
type Simulator struct {
	// Fail maps a subcommand ("req -x509", "genrsa", "req -new", "x509",
	// "pkcs12", "keytool") to the exit code it should fail with.
	Fail map[string]int
	// Version overrides OpenSSLVersion.
	Version string

	m       sync.Mutex
	serial  int64
	invoked []string
}

// New returns a Simulator.
func New() *Simulator {
	return &Simulator{Fail: map[string]int{}, serial: 1000}
}

// Runner returns a FakeRunner driven by the simulator.
func (s *Simulator) Runner() *exec.FakeRunner {
	return &exec.FakeRunner{Handler: s.Handle}
}

// Invoked returns the subcommands handled so far.
func (s *Simulator) Invoked() []string {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]string(nil), s.invoked...)
}

// Handle simulates cmd.
func (s *Simulator) Handle(_ context.Context, cmd *exec.ExecCmd) (*exec.ExecResult, error) {
	res := exec.NewExecResult(cmd)
	args := cmd.GetCmd()
	op := operation(args)

	s.m.Lock()
	s.invoked = append(s.invoked, op)
	s.m.Unlock()

	if rc, ok := s.Fail[op]; ok {
		res.ReturnCode = rc
		res.Stderr = fmt.Sprintf("simulated %s failure", op)
		return res, nil
	}

	var err error
	switch op {
	case "version":
		v := s.Version
		if v == "" {
			v = OpenSSLVersion
		}
		res.Stdout = v + "\n"
	case "req -x509":
		err = s.rootCert(cmd)
	case "genrsa":
		err = s.genKey(cmd)
	case "req -new":
		err = s.csr(cmd)
	case "x509":
		err = s.sign(cmd)
	case "pkcs12":
		err = s.pkcs12(cmd)
	case "keytool":
		err = s.keytool(cmd)
	case "keytool -help":
	default:
		err = fmt.Errorf("unsupported invocation %q", strings.Join(args, " "))
	}

	if err != nil {
		res.ReturnCode = 1
		res.Stderr = err.Error()
	}
	return res, nil
}

func operation(args []string) string {
	if len(args) == 0 {
		return ""
	}
	tool := filepath.Base(args[0])
	rest := args[1:]
	if tool == "keytool" {
		if len(rest) > 0 && rest[0] == "-help" {
			return "keytool -help"
		}
		return "keytool"
	}
	if len(rest) == 0 {
		return tool
	}
	switch rest[0] {
	case "req":
		if hasFlag(rest, "-x509") {
			return "req -x509"
		}
		return "req -new"
	default:
		return rest[0]
	}
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func path(cmd *exec.ExecCmd, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cmd.Dir, p)
}

func (s *Simulator) nextSerial() *big.Int {
	s.m.Lock()
	defer s.m.Unlock()
	s.serial++
	return big.NewInt(s.serial)
}

func subjectCN(subj string) string {
	for _, part := range strings.Split(subj, "/") {
		if strings.HasPrefix(part, "CN=") {
			return strings.TrimPrefix(part, "CN=")
		}
	}
	return ""
}

func days(args []string) time.Duration {
	d, err := strconv.Atoi(flagValue(args, "-days"))
	if err != nil {
		d = 30
	}
	return time.Duration(d) * 24 * time.Hour
}

func (s *Simulator) rootCert(cmd *exec.ExecCmd) error {
	args := cmd.GetCmd()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          s.nextSerial(),
		Subject:               pkix.Name{CommonName: subjectCN(flagValue(args, "-subj"))},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(days(args)),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return err
	}
	if err := writeKey(path(cmd, flagValue(args, "-keyout")), key); err != nil {
		return err
	}
	return writePEM(path(cmd, flagValue(args, "-out")), "CERTIFICATE", der)
}

func (s *Simulator) genKey(cmd *exec.ExecCmd) error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}
	return writeKey(path(cmd, flagValue(cmd.GetCmd(), "-out")), key)
}

func (s *Simulator) csr(cmd *exec.ExecCmd) error {
	args := cmd.GetCmd()
	if conf := flagValue(args, "-config"); conf != "" {
		if _, err := os.Stat(path(cmd, conf)); err != nil {
			return err
		}
	}
	key, err := readKey(path(cmd, flagValue(args, "-key")))
	if err != nil {
		return err
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: "service"},
	}, key)
	if err != nil {
		return err
	}
	return writePEM(path(cmd, flagValue(args, "-out")), "CERTIFICATE REQUEST", der)
}

func (s *Simulator) sign(cmd *exec.ExecCmd) error {
	args := cmd.GetCmd()
	if ext := flagValue(args, "-extfile"); ext != "" {
		if _, err := os.Stat(path(cmd, ext)); err != nil {
			return err
		}
	}
	csrPEM, err := os.ReadFile(path(cmd, flagValue(args, "-in")))
	if err != nil {
		return err
	}
	block, _ := pem.Decode(csrPEM)
	if block == nil {
		return fmt.Errorf("unable to load certificate request")
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return err
	}
	caPath := path(cmd, flagValue(args, "-CA"))
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return err
	}
	caBlock, _ := pem.Decode(caPEM)
	if caBlock == nil {
		return fmt.Errorf("unable to load CA certificate")
	}
	caCert, err := x509.ParseCertificate(caBlock.Bytes)
	if err != nil {
		return err
	}
	caKey, err := readKey(path(cmd, flagValue(args, "-CAkey")))
	if err != nil {
		return err
	}

	cn := subjectCN(flagValue(args, "-subj"))
	serial := s.nextSerial()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{cn},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(days(args)),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, csr.PublicKey, caKey)
	if err != nil {
		return err
	}
	if hasFlag(args, "-CAcreateserial") {
		srl := strings.TrimSuffix(caPath, filepath.Ext(caPath)) + ".srl"
		if err := os.WriteFile(srl, []byte(fmt.Sprintf("%X\n", serial)), 0o644); err != nil {
			return err
		}
	}
	return writePEM(path(cmd, flagValue(args, "-out")), "CERTIFICATE", der)
}

func secretFromEnvRef(cmd *exec.ExecCmd, ref string) (string, error) {
	v, ok := cmd.Secret(ref)
	if !ok || v == "" {
		return "", fmt.Errorf("password variable %q not set", ref)
	}
	return v, nil
}

func (s *Simulator) pkcs12(cmd *exec.ExecCmd) error {
	args := cmd.GetCmd()
	passout := flagValue(args, "-passout")
	if !strings.HasPrefix(passout, "env:") {
		return fmt.Errorf("unsupported -passout %q", passout)
	}
	pass, err := secretFromEnvRef(cmd, strings.TrimPrefix(passout, "env:"))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, f := range []string{"-inkey", "-in", "-certfile"} {
		b, err := os.ReadFile(path(cmd, flagValue(args, f)))
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return os.WriteFile(path(cmd, flagValue(args, "-out")),
		append([]byte(fmt.Sprintf("PKCS12 %s %d\n", flagValue(args, "-name"), len(pass))), buf.Bytes()...), 0o600)
}

func (s *Simulator) keytool(cmd *exec.ExecCmd) error {
	args := cmd.GetCmd()
	src := path(cmd, flagValue(args, "-srckeystore"))
	b, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("keytool error: %w", err)
	}
	for _, f := range []string{"-srcstorepass:env", "-deststorepass:env"} {
		if _, err := secretFromEnvRef(cmd, flagValue(args, f)); err != nil {
			return err
		}
	}
	alias := flagValue(args, "-destalias")
	if alias == "" || alias != flagValue(args, "-srcalias") {
		return fmt.Errorf("keytool error: alias mismatch")
	}
	out := append([]byte("JKS "+alias+"\n"), b...)
	return os.WriteFile(path(cmd, flagValue(args, "-destkeystore")), out, 0o600)
}

func writeKey(p string, key *rsa.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	return writePEM(p, "PRIVATE KEY", der)
}

func readKey(p string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("unable to load key %s", p)
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", k)
	}
	return rk, nil
}

func writePEM(p, typ string, der []byte) error {
	if p == "" {
		return fmt.Errorf("missing output path for %s", typ)
	}
	return os.WriteFile(p, pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der}), 0o600)
}
