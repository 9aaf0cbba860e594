package cloudinary

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

func TestSignUploadIsDeterministic(t *testing.T) {
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/campusfix/reports/"}, zerolog.Nop())
	require.NoError(t, err)

	at := time.Unix(1700000000, 0)
	first, err := svc.SignUpload(at)
	require.NoError(t, err)
	second, err := svc.SignUpload(at)
	require.NoError(t, err)

	require.Equal(t, first.Signature, second.Signature)
	require.NotEmpty(t, first.Signature)
	require.Equal(t, "campusfix/reports", first.Folder)
	require.Equal(t, int64(1700000000), first.Timestamp)
	require.Equal(t, "https://api.cloudinary.com/v1_1/demo/image/upload", first.UploadURL)

	later, err := svc.SignUpload(at.Add(time.Second))
	require.NoError(t, err)
	require.NotEqual(t, first.Signature, later.Signature)
}

func TestBuildPublicIDReplacesUnsafeCharacters(t *testing.T) {
	id := buildPublicID("broken light (hall a).jpg")
	require.True(t, strings.HasPrefix(id, "broken-light--hall-a-"), id)
}
