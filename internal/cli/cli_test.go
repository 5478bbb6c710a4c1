package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"github.com/ppiankov/compass/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config="+filepath.Join(t.TempDir(), "missing.yaml")))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		viper.Reset()
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeCorpus(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	doc := "Organizations must apply encryption standards to personal information at rest and in transit.\n\n" +
		"Records of chat messages must be kept only as long as the retention requirements allow.\n"
	if err := os.WriteFile(filepath.Join(dir, "safeguards.md"), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestMessageFromArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{"joins words", []string{"what", "is", "consent?"}, "", "what is consent?"},
		{"single argument", []string{"what is consent?"}, "", "what is consent?"},
		{"dash reads stdin", []string{"-"}, "  from stdin\n", "from stdin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := messageFromArgs(tt.args, strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatalf("messageFromArgs() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("messageFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadDetections(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("valid", func(t *testing.T) {
		path := write("ok.json", `[{"type":"Email Address","value":"a@b.co","start":3,"end":9}]`)
		got, err := readDetections(path)
		if err != nil {
			t.Fatalf("readDetections() error = %v", err)
		}
		want := []model.Detection{{Category: "Email Address", Value: "a@b.co", Start: 3, End: 9}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("readDetections() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		got, err := readDetections("")
		if err != nil || got != nil {
			t.Errorf("readDetections(\"\") = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("missing type", func(t *testing.T) {
		path := write("notype.json", `[{"value":"x","start":0,"end":1}]`)
		if _, err := readDetections(path); err == nil {
			t.Error("expected error for detection without type")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		path := write("bad.json", `{not json`)
		if _, err := readDetections(path); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if diff := cmp.Diff(model.DefaultConfig().Retrieval, cfg.Retrieval); diff != "" {
			t.Errorf("retrieval config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("override", func(t *testing.T) {
		viper.Reset()
		viper.Set("retrieval.max_follow_ups", 2)
		cfg, err := loadConfig()
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Retrieval.MaxFollowUps != 2 {
			t.Errorf("MaxFollowUps = %d, want 2", cfg.Retrieval.MaxFollowUps)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		viper.Reset()
		viper.Set("retrieval.initial_limit", 0)
		_, err := loadConfig()
		if !errors.Is(err, model.ErrConfiguration) {
			t.Errorf("loadConfig() error = %v, want ErrConfiguration", err)
		}
	})
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "classify", "How should we encrypt data when storing chat message records?")
	if err != nil {
		t.Fatalf("classify error = %v", err)
	}
	if !strings.Contains(out, "Category: DEVELOPMENT_TICKET") {
		t.Errorf("output missing category:\n%s", out)
	}
	if !strings.Contains(out, "Message Classification") {
		t.Errorf("output missing transcript:\n%s", out)
	}
}

func TestProcessThenAudit(t *testing.T) {
	corpus := writeCorpus(t)
	db := filepath.Join(t.TempDir(), "audit.db")
	t.Setenv("COMPASS_SEARCH_CORPUS_DIR", corpus)

	out, err := execute(t, "process", "--audit", db, "--no-cache",
		"How should we encrypt data when storing chat message records?")
	if err != nil {
		t.Fatalf("process error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Category: DEVELOPMENT_TICKET") {
		t.Errorf("summary missing category:\n%s", out)
	}
	auditPath = ""

	out, err = execute(t, "audit", "list", "--db", db)
	if err != nil {
		t.Fatalf("audit list error = %v", err)
	}
	if !strings.Contains(out, "DEVELOPMENT_TICKET") {
		t.Errorf("audit list missing report:\n%s", out)
	}
}

func TestAuditWithoutDatabase(t *testing.T) {
	auditDBPath = ""
	_, err := execute(t, "audit", "list")
	if err == nil || !strings.Contains(err.Error(), "no audit database configured") {
		t.Errorf("audit list error = %v, want missing database error", err)
	}
}
