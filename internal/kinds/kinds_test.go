package kinds

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeKindsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kinds.hcl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validKinds = `
kind "statblock" {
  endpoint           = "/generate/statblock"
  estimated_duration = "8s"
  timeout            = "150s"
  color              = "#7c5cff"

  milestone {
    at      = 0
    message = "Summoning the creature..."
  }
  milestone {
    at      = 50
    message = "Rolling stats..."
  }

  tutorial {
    simulated_duration = "7s"
    mock_data          = "{\"statblock\":{\"name\":\"Practice Dummy\"}}"
  }
}

kind "artwork" {
  endpoint = "/generate/artwork"
}
`

func TestLoad(t *testing.T) {
	reg, err := Load(writeKindsFile(t, validKinds))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	statblock, ok := reg.Get("statblock")
	if !ok {
		t.Fatal("statblock kind missing")
	}
	if statblock.EstimatedDuration != 8*time.Second {
		t.Errorf("estimated duration = %v", statblock.EstimatedDuration)
	}
	if statblock.Timeout != 150*time.Second {
		t.Errorf("timeout = %v", statblock.Timeout)
	}
	if len(statblock.Milestones) != 2 || statblock.Milestones[1].Message != "Rolling stats..." {
		t.Errorf("milestones = %+v", statblock.Milestones)
	}
	if statblock.Tutorial == nil || statblock.Tutorial.SimulatedDuration != 7*time.Second {
		t.Errorf("tutorial = %+v", statblock.Tutorial)
	}

	artwork, ok := reg.Get("artwork")
	if !ok {
		t.Fatal("artwork kind missing")
	}
	// дефолтная оценка, когда estimated_duration не задана
	if artwork.EstimatedDuration != 10*time.Second {
		t.Errorf("default estimated duration = %v", artwork.EstimatedDuration)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing endpoint",
			content: `kind "a" { endpoint = "" }`,
		},
		{
			name: "duplicate kind",
			content: `
kind "a" { endpoint = "/a" }
kind "a" { endpoint = "/a" }
`,
		},
		{
			name: "milestones not increasing",
			content: `
kind "a" {
  endpoint = "/a"
  milestone { at = 50  message = "x" }
  milestone { at = 50  message = "y" }
}
`,
		},
		{
			name: "milestone out of range",
			content: `
kind "a" {
  endpoint = "/a"
  milestone { at = 120  message = "x" }
}
`,
		},
		{
			name:    "bad duration",
			content: `kind "a" { endpoint = "/a"  estimated_duration = "soon" }`,
		},
		{
			name: "invalid mock data",
			content: `
kind "a" {
  endpoint = "/a"
  tutorial { mock_data = "not json" }
}
`,
		},
		{
			name:    "no kinds",
			content: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeKindsFile(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	reg := Defaults()
	for _, name := range []string{"statblock", "artwork"} {
		kind, ok := reg.Get(name)
		if !ok {
			t.Fatalf("default kind %q missing", name)
		}
		if kind.Endpoint == "" || kind.EstimatedDuration <= 0 {
			t.Errorf("kind %q incomplete: %+v", name, kind)
		}
		if kind.Tutorial == nil || len(kind.Tutorial.MockData) == 0 {
			t.Errorf("kind %q has no tutorial mock data", name)
		}
	}
}

func TestControllerConfig(t *testing.T) {
	kind, _ := Defaults().Get("statblock")

	cfg := kind.ControllerConfig("http://localhost:9090/api", nil, false)
	if cfg.Endpoint != "http://localhost:9090/api/generate/statblock" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.Tutorial != nil {
		t.Error("tutorial config set without tutorial mode")
	}

	cfg = kind.ControllerConfig("http://localhost:9090/api", nil, true)
	if cfg.Tutorial == nil {
		t.Error("tutorial mode did not propagate")
	}
}
