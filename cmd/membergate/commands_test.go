package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PaulFidika/membergate/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	defer func() { Version, GitCommit = oldVersion, oldCommit }()

	Version, GitCommit = "1.2.3", "abcdef"
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "membergate 1.2.3")
	assert.Contains(t, out, "Commit: abcdef")

	GitCommit = "unknown"
	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.NotContains(t, out, "Commit:")
}

func TestHashSecretCmd(t *testing.T) {
	out, err := execute(t, "hash-secret", "--algo", "bcrypt", "hunter2")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, password.MatchSecret(hash, "hunter2"))
	assert.False(t, password.MatchSecret(hash, "hunter3"))

	_, err = execute(t, "hash-secret", "--algo", "md5", "hunter2")
	assert.Error(t, err)
}

func TestReconcileRequiresOneArgument(t *testing.T) {
	_, err := execute(t, "reconcile")
	assert.Error(t, err)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SUPABASE_URL", "https://xyz.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("SITE_URL", "https://example.com")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_URI", "")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.uri")
}

func TestDefaultLimitsCoverEveryBucket(t *testing.T) {
	for bucket, n := range defaultLimits {
		assert.Positive(t, n, bucket)
	}
	assert.Len(t, defaultLimits, 8)
}
