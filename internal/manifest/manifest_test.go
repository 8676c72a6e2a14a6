// manifest_test.go verifies sync manifest parsing, defaulting, and validation.
package manifest

import (
	"strings"
	"testing"
)

const sample = `
docsDir: docs
defaults:
  ref: main
  header: true
sources:
  - name: controllers-intro
    repo: kube-rs/kube
    path: README.md
    dest: crates/kube.md
    rewrites:
      - pattern: '^# kube$'
        replace: '# Crate kube'
  - name: changelog
    repo: kube-rs/kube
    ref: release-1.0
    path: CHANGELOG.md
    dest: changelog.md
    header: false
`

func TestParseAppliesDefaults(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(m.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(m.Sources))
	}
	first := m.Sources[0]
	if first.Ref != "main" {
		t.Fatalf("default ref not applied, got %q", first.Ref)
	}
	if !first.WantHeader() {
		t.Fatalf("default header not applied")
	}
	second := m.Sources[1]
	if second.Ref != "release-1.0" {
		t.Fatalf("explicit ref lost, got %q", second.Ref)
	}
	if second.WantHeader() {
		t.Fatalf("explicit header=false should win over default")
	}
}

func TestRawURL(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := m.Sources[0].RawURL()
	want := "https://raw.githubusercontent.com/kube-rs/kube/main/README.md"
	if got != want {
		t.Fatalf("raw url mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestRewriteApply(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out := m.Sources[0].Rewrites[0].Apply("# kube")
	if out != "# Crate kube" {
		t.Fatalf("rewrite not applied, got %q", out)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty sources",
			yaml: "sources: []\n",
			want: "no sources",
		},
		{
			name: "bad repo",
			yaml: "sources:\n  - {name: a, repo: nota-repo, path: x.md, dest: x.md}\n",
			want: "owner/name",
		},
		{
			name: "dest escape",
			yaml: "sources:\n  - {name: a, repo: o/r, path: x.md, dest: ../../etc/passwd}\n",
			want: "escapes",
		},
		{
			name: "duplicate dest",
			yaml: "sources:\n  - {name: a, repo: o/r, path: x.md, dest: x.md}\n  - {name: b, repo: o/r, path: y.md, dest: x.md}\n",
			want: "duplicate dest",
		},
		{
			name: "bad rewrite regex",
			yaml: "sources:\n  - {name: a, repo: o/r, path: x.md, dest: x.md, rewrites: [{pattern: '[', replace: ''}]}\n",
			want: "rewrite",
		},
		{
			name: "unknown key",
			yaml: "sources:\n  - {name: a, repo: o/r, path: x.md, dest: x.md, bogus: 1}\n",
			want: "bogus",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestFind(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if src := m.Find("changelog"); src == nil || src.Dest != "changelog.md" {
		t.Fatalf("find returned wrong source: %+v", src)
	}
	if src := m.Find("missing"); src != nil {
		t.Fatalf("expected nil for unknown name, got %+v", src)
	}
}
