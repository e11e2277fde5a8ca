package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/memmap"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/registry"
)

func resetFlags() {
	cfgFile = ""
	verbose = false
	modelsDir = ""
	modelName = ""
	portName = ""
	baudRate = 0
	outFile = ""
	simImage = ""
	archiveNote = ""
	metricsListen = ""
	dumpHex = false
	dumpPath = ""
	setOutFile = ""
	strictBCD = false
	baseOffset = 0
	storePath = ""
	storeNote = ""
	storeModel = ""
	storeOut = ""
}

// run executes the root command with args and returns what it printed to
// stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Read in background to prevent the pipe buffer from blocking
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	resetFlags()
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	w.Close()
	os.Stdout = old
	<-done
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("radiomem %s: unexpected error: %v\nOutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

func wantContains(t *testing.T, output string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing %q\nGot:\n%s", want, output)
		}
	}
}

// isolate keeps tests away from the user's config and image database.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("HOME", dir)
	return dir
}

func TestCloneEditE2E(t *testing.T) {
	dir := isolate(t)
	image := filepath.Join(dir, "bf888.img")

	out := mustRun(t, "models")
	wantContains(t, out, "Known radio models:", "Baofeng BF-888", "memsize 0x03E0", "OpenTrace Demo-8")

	out = mustRun(t, "download", "-m", "BF-888", "-p", "simulator", "-o", image)
	wantContains(t, out, "downloaded 992 bytes from Baofeng BF-888")

	out = mustRun(t, "set", image, "settings2.squelchlevel", "5")
	wantContains(t, out, "updated settings2.squelchlevel = 5")

	out = mustRun(t, "set", image, "memory[0].rxfreq", "14652000")
	wantContains(t, out, "updated memory[0].rxfreq")

	out = mustRun(t, "get", image, "settings2.squelchlevel")
	if strings.TrimSpace(out) != "5" {
		t.Errorf("get squelchlevel = %q, want 5", out)
	}
	out = mustRun(t, "get", image, "memory[0].rxfreq")
	if strings.TrimSpace(out) != "14652000" {
		t.Errorf("get rxfreq = %q, want 14652000", out)
	}

	out = mustRun(t, "dump", image, "--path", "settings2")
	wantContains(t, out, "squelchlevel", "0x03C1", "[05]")

	out = mustRun(t, "dump", image, "--hex")
	wantContains(t, out, "000: ff ff ff ff")

	out = mustRun(t, "upload", image, "-p", "simulator", "--sim-image", image)
	wantContains(t, out, "uploaded", "simulator accepted 48 blocks")
}

func TestDownloadFromSeededSimulator(t *testing.T) {
	dir := isolate(t)
	seed := filepath.Join(dir, "seed.img")
	image := filepath.Join(dir, "copy.img")

	mustRun(t, "download", "-m", "Demo-8", "-p", "sim", "-o", seed)
	mustRun(t, "set", seed, "poweron_msg", "HELLO")
	mustRun(t, "download", "-m", "Demo-8", "-p", "sim", "--sim-image", seed, "-o", image)

	out := mustRun(t, "get", image, "poweron_msg")
	if strings.TrimSpace(out) != "HELLO" {
		t.Errorf("poweron_msg = %q, want HELLO", out)
	}
}

func TestCompileE2E(t *testing.T) {
	dir := isolate(t)
	schema := filepath.Join(dir, "radio.mem")
	src := "#seekto 0x10;\nstruct {\n  ul16 freq;\n  u8 power:2, mode:6;\n} chan[4];\n"
	if err := os.WriteFile(schema, []byte(src), 0o644); err != nil {
		t.Fatalf("Failed to write schema: %v", err)
	}

	out := mustRun(t, "compile", schema)
	wantContains(t, out, "layout: 28 bytes", "chan", "freq", "power")

	bad := filepath.Join(dir, "bad.mem")
	os.WriteFile(bad, []byte("u8 a;\nu8 a;\n"), 0o644)
	if _, err := run(t, "compile", bad); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Expected duplicate field error, got %v", err)
	}
}

func TestStoreE2E(t *testing.T) {
	dir := isolate(t)
	db := filepath.Join(dir, "images.db")
	image := filepath.Join(dir, "radio.img")
	restored := filepath.Join(dir, "restored.img")

	mustRun(t, "download", "-m", "BF-888", "-p", "simulator", "-o", image)

	out := mustRun(t, "store", "save", image, "--db", db, "--note", "factory")
	wantContains(t, out, "as image 1")

	out = mustRun(t, "store", "list", "--db", db)
	wantContains(t, out, "Baofeng BF-888", "992 bytes", "factory")

	out = mustRun(t, "store", "get", "1", "--db", db, "-o", restored)
	wantContains(t, out, "wrote image 1")
	want, _ := os.ReadFile(image)
	got, _ := os.ReadFile(restored)
	if !bytes.Equal(want, got) {
		t.Errorf("Restored image differs from the archived one")
	}

	mustRun(t, "store", "delete", "1", "--db", db)
	if _, err := run(t, "store", "delete", "1", "--db", db); err == nil {
		t.Errorf("Expected error deleting a missing image")
	}
}

func TestErrorsE2E(t *testing.T) {
	dir := isolate(t)
	image := filepath.Join(dir, "bf.img")
	mustRun(t, "download", "-m", "BF-888", "-p", "simulator", "-o", image)

	tests := []struct {
		name string
		args []string
	}{
		{"download without model", []string{"download", "-p", "simulator", "-o", image}},
		{"unknown model", []string{"download", "-m", "UV-5R", "-p", "simulator", "-o", image}},
		{"no port", []string{"download", "-m", "BF-888", "-o", image}},
		{"unknown field", []string{"get", image, "settings2.nothing"}},
		{"index out of range", []string{"get", image, "memory[16].rxfreq"}},
		{"value out of range", []string{"set", image, "settings2.squelchlevel", "300"}},
		{"missing image", []string{"dump", filepath.Join(dir, "missing.img")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("Expected error for %v", tt.args)
			}
		})
	}

	out := mustRun(t, "get", image, "settings2.squelchlevel")
	if strings.TrimSpace(out) != "255" {
		t.Errorf("failed set must not change the image, got %q", out)
	}
}

func TestResolveModelUsesVariant(t *testing.T) {
	saved := repo
	t.Cleanup(func() { repo = saved })
	resetFlags()

	repo = registry.NewMemoryRepository()
	for _, m := range []*registry.Model{
		{Vendor: "Acme", Model: "R1", Schema: "u8 a;"},
		{Vendor: "Acme", Model: "R1", Variant: "EU", Schema: "u8 a; u8 b;"},
	} {
		if err := repo.Add(m); err != nil {
			t.Fatalf("Failed to add %s: %v", m.ID(), err)
		}
	}

	img := memmap.New(make([]byte, 2))
	img.SetMetadata(&memmap.Metadata{Vendor: "Acme", Model: "R1", Variant: "EU"})
	got, err := resolveModel(img)
	if err != nil {
		t.Fatalf("resolveModel: %v", err)
	}
	if got.Variant != "EU" {
		t.Errorf("Expected the EU variant, got %q", got.ID())
	}

	img.SetMetadata(&memmap.Metadata{Vendor: "Acme", Model: "R1"})
	got, err = resolveModel(img)
	if err != nil {
		t.Fatalf("resolveModel: %v", err)
	}
	if got.Variant != "" {
		t.Errorf("Expected the base model, got %q", got.ID())
	}
}
