package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestPublicIDPrefixesFolderAndCleansPath(t *testing.T) {
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/promptlab/projects/"}, zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, "promptlab/projects/projects/4/abc", svc.publicID("projects/4/abc"))
	require.Equal(t, "promptlab/projects/projects/4/abc", svc.publicID("/projects/../projects/4/abc"))
}
