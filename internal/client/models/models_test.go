package models

import (
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hi / there?", "Hi _ there_"},
		{"b ?.txt", "b _.txt"},
		{`a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"  lots   of\u00a0 space  ", "lots of space"},
		{"a\u2003\u2009b\u3000c", "a b c"},
		{"\ufeffreport\u00a0\u00a0q3\u202f.pdf", "report q3 .pdf"},
		{"tab\there", "tab_here"},
		{"a.PDF", "a.PDF"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFileName(tt.in), tt.in)
	}
}

func TestSanitizeFileName_SafetyProperty(t *testing.T) {
	inputs := []string{
		strings.Repeat("x", 500),
		strings.Repeat("😀", 100),
		strings.Repeat("<>:\"/\\|?*", 30),
		"\x00\x01\x1f name \x7f",
	}
	for _, in := range inputs {
		out := SanitizeFileName(in)
		require.False(t, strings.ContainsAny(out, `<>:"/\|?*`), out)
		for _, r := range out {
			require.False(t, r < 0x20, "control char in %q", out)
		}
		require.LessOrEqual(t, len(utf16.Encode([]rune(out))), MaxFileNameUnits)
	}
}

func TestSanitizeFileName_DoesNotSplitSurrogatePairs(t *testing.T) {
	in := strings.Repeat("a", 119) + "😀"
	out := SanitizeFileName(in)
	assert.Equal(t, strings.Repeat("a", 119), out)
}

func TestAttachmentFile_Ext(t *testing.T) {
	tests := map[string]string{
		"msg.eml":        "eml",
		"a.PDF":          "pdf",
		"b _.txt":        "txt",
		"archive.tar.GZ": "gz",
		"noext":          "bin",
		"trailing.":      "bin",
	}
	for name, want := range tests {
		assert.Equal(t, want, AttachmentFile{Name: name}.Ext(), name)
	}
}

func TestBundle_FilesOrderAndFlags(t *testing.T) {
	b := &Bundle{
		EML:         AttachmentFile{Name: "msg.eml"},
		Attachments: []AttachmentFile{{Name: "a.PDF"}, {Name: "b _.txt"}},
	}

	names := func(fs []AttachmentFile) []string {
		var out []string
		for _, f := range fs {
			out = append(out, f.Name)
		}
		return out
	}

	assert.Equal(t, []string{"msg.eml", "a.PDF", "b _.txt"}, names(b.Files(true, true)))
	assert.Equal(t, []string{"msg.eml"}, names(b.Files(true, false)))
	assert.Equal(t, []string{"a.PDF", "b _.txt"}, names(b.Files(false, true)))
	assert.Empty(t, b.Files(false, false))
}

func TestScopeKind(t *testing.T) {
	k, ok := ParseScopeKind(" Client ")
	require.True(t, ok)
	assert.Equal(t, ScopeClient, k)
	assert.Equal(t, "party", k.StorageType())
	assert.Equal(t, "case", ScopeCase.StorageType())

	_, ok = ParseScopeKind("party")
	assert.False(t, ok, "storage vocabulary is not accepted from users")
}

func TestRow_Accessors(t *testing.T) {
	r := Row{"name": "  Acme ", "empty": "  ", "n": 42, "nil": nil}

	assert.Equal(t, "Acme", r.String("name"))
	assert.Equal(t, "", r.String("n"))
	assert.Equal(t, "42", r.Text("n"))
	assert.Equal(t, "", r.Text("nil"))
	assert.Equal(t, "Acme", r.FirstString("empty", "missing", "name"))
}

func TestTree_Folders(t *testing.T) {
	tr := Tree{Nodes: []TreeNode{
		{ID: "f1", Kind: NodeFolder},
		{ID: "x", Kind: NodeFile},
		{ID: "f2", Kind: NodeFolder},
	}}
	fs := tr.Folders()
	require.Len(t, fs, 2)
	assert.Equal(t, "f1", fs[0].ID)
	assert.Equal(t, "f2", fs[1].ID)
}

func TestSanitizeWithSuffix_KeepsSuffixWithinLimit(t *testing.T) {
	out := SanitizeWithSuffix(strings.Repeat("s", 200), ".eml")
	assert.Len(t, out, MaxFileNameUnits)
	assert.True(t, strings.HasSuffix(out, ".eml"))

	assert.Equal(t, "Hi _ there_.eml", SanitizeWithSuffix("Hi / there?", ".eml"))
}
