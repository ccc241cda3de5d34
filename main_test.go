package main

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ems-go/apikey"
	"github.com/user/ems-go/store"
)

func TestBootstrapAdminKeyPrintsSecretOnce(t *testing.T) {
	mem := store.NewMemory()
	keys := apikey.NewService(mem)

	var logged bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&logged)
	defer log.SetOutput(prev)

	var console bytes.Buffer
	require.NoError(t, bootstrapAdminKey(keys, mem, "EMS-Api-Key", &console))

	line := strings.TrimSpace(console.String())
	secret := strings.TrimPrefix(line, "ADMIN API KEY: ")
	require.NotEqual(t, line, secret, "console output should carry the key marker")
	require.NotEmpty(t, secret)

	// The printed secret is the working admin credential.
	valid, err := keys.Verify(context.Background(), apikey.AdminPrincipal(), secret)
	require.NoError(t, err)
	assert.True(t, valid)

	// The secret rides only on the console channel, never in the log stream.
	assert.NotContains(t, logged.String(), secret)

	// A second startup leaves the existing key alone and prints nothing.
	console.Reset()
	require.NoError(t, bootstrapAdminKey(keys, mem, "EMS-Api-Key", &console))
	assert.Empty(t, console.String())
}
