package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wdb/iiifgate/internal/gate/session"
)

func TestCandidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		want    []string
	}{
		{
			name:    "no cookies",
			headers: nil,
			want:    nil,
		},
		{
			name:    "unrelated cookies",
			headers: []string{"theme=dark; lang=en"},
			want:    nil,
		},
		{
			name:    "canonical cookie first",
			headers: []string{"SESSabc123=second; PHPSESSID=first"},
			want:    []string{"first", "second"},
		},
		{
			name:    "secure and mixed case names",
			headers: []string{"SSESSdeadbeef=a;sessCAFE=b"},
			want:    []string{"a", "b"},
		},
		{
			name:    "first occurrence wins",
			headers: []string{"SESSabc=one", "SESSabc=two"},
			want:    []string{"one"},
		},
		{
			name:    "values decoded trimmed and de-duplicated",
			headers: []string{"PHPSESSID=%20abc%2Bdef; SESS1=abc%2Bdef; SESS2=+"},
			want:    []string{"abc+def"},
		},
		{
			name:    "name outside hex alphabet ignored",
			headers: []string{"SESSxyz=nope; SESS=nope"},
			want:    nil,
		},
		{
			name:    "value may contain equals",
			headers: []string{"SESS01=a=b"},
			want:    []string{"a=b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, session.Candidates(tt.headers, ""))
		})
	}
}

func TestCandidates_CustomCanonicalName(t *testing.T) {
	t.Parallel()

	got := session.Candidates([]string{"SESS01=b; wdb_session=a"}, "wdb_session")
	require.Equal(t, []string{"a", "b"}, got)
}
