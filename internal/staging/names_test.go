package staging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "report.pdf", want: "report.pdf"},
		{name: "unix traversal", input: "../../etc/passwd", want: "passwd"},
		{name: "windows path", input: `C:\Users\me\My Report.pdf`, want: "My_Report.pdf"},
		{name: "hidden file", input: ".hidden.pdf", want: "hidden.pdf"},
		{name: "non ascii dropped", input: "résumé.pdf", want: "rsum.pdf"},
		{name: "shell characters dropped", input: "a;b|c$(d).pdf", want: "abcd.pdf"},
		{name: "only dots", input: "..", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "only slashes", input: "///", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeFilename(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFilename)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	require.NoError(t, ValidateSessionID("0b8a2f9e-8a34-4f55-9c1e-1f0c2d4b7a11"))
	require.NoError(t, ValidateSessionID("abc123"))
	require.ErrorIs(t, ValidateSessionID("../abc"), ErrInvalidSessionID)
}

func TestSanitizeFilename_CanLoseExtension(t *testing.T) {
	name, err := SanitizeFilename("日本.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", name)
}

func TestUploadName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "report.pdf", want: "report.pdf"},
		{name: "upper case extension kept", input: "Report.PDF", want: "Report.PDF"},
		{name: "whitespace", input: "a b.pdf", want: "a_b.pdf"},
		{name: "partly non ascii", input: "résumé 2024.pdf", want: "rsum_2024.pdf"},
		{name: "japanese stem", input: "日本.pdf", want: "upload.pdf"},
		{name: "cyrillic stem", input: "отчёт.pdf", want: "upload.pdf"},
		{name: "extension only", input: ".pdf", want: "upload.pdf"},
		{name: "nothing left", input: "..", want: "upload.pdf"},
		{name: "traversal", input: "../../secret.pdf", want: "secret.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UploadName(tt.input, ".pdf"))
		})
	}
}

func TestUniqueName(t *testing.T) {
	taken := map[string]bool{}

	var got []string
	for _, input := range []string{"a b.pdf", "a_b.pdf", "日本.pdf", "отчёт.pdf", "a_b.pdf"} {
		name := UniqueName(UploadName(input, ".pdf"), taken)
		taken[name] = true
		got = append(got, name)
	}

	assert.Equal(t, []string{"a_b.pdf", "a_b-2.pdf", "upload.pdf", "upload-2.pdf", "a_b-3.pdf"}, got)
}
