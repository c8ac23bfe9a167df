package creds

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpush/modelpush/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mapEnv returns a getenv func backed by a map, so tests never touch the
// process environment.
func mapEnv(vars map[string]string) func(string) string {
	return func(name string) string {
		return vars[name]
	}
}

type fakeStore struct {
	state *CachedAuthState
}

func (f *fakeStore) LoadAuthState() *CachedAuthState {
	return f.state
}

type fakePrompter struct {
	inputs      map[string]string
	secret      string
	selection   string
	inputCalls  []string
	secretCalls int
	selectCalls int
	err         error
}

func (f *fakePrompter) Input(title, _ string) (string, error) {
	f.inputCalls = append(f.inputCalls, title)
	if f.err != nil {
		return "", f.err
	}
	return f.inputs[title], nil
}

func (f *fakePrompter) Secret(string) (string, error) {
	f.secretCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.secret, nil
}

func (f *fakePrompter) Select(string, []string) (string, error) {
	f.selectCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.selection, nil
}

func TestResolve_SourcePriority(t *testing.T) {
	r := &Resolver{
		File: &config.Config{
			WorkspaceURL: "https://file.example.com/v1/workspaces/aaa",
			ModelName:    "FromFile",
			TenantID:     "file-tenant",
		},
		Store: &fakeStore{state: &CachedAuthState{
			WorkspaceURL: "https://cache.example.com/v1/workspaces/bbb",
			ModelName:    "FromCache",
		}},
		Getenv: mapEnv(map[string]string{
			EnvWorkspaceURL: "https://env.example.com/v1/workspaces/ccc",
		}),
		Logger: testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{
		WorkspaceURL: "https://flags.example.com/v1/workspaces/ddd",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://flags.example.com/v1/workspaces/ddd", cfg.WorkspaceURL,
		"flags outrank every other source")
	assert.Equal(t, "FromCache", cfg.ModelName,
		"cache outranks file when the higher sources are silent")
	assert.Equal(t, "file-tenant", cfg.TenantID,
		"file value survives when nothing overrides it")
}

func TestResolve_FlagsNeverOverwritten(t *testing.T) {
	// Every lower-priority source supplies a competing workspace URL; the
	// flag value must win against all of them at once.
	r := &Resolver{
		File: &config.Config{WorkspaceURL: "https://file.example.com/v1/workspaces/a"},
		Store: &fakeStore{state: &CachedAuthState{
			WorkspaceURL: "https://cache.example.com/v1/workspaces/b",
		}},
		Getenv: mapEnv(map[string]string{
			EnvWorkspaceURL:      "https://env.example.com/v1/workspaces/c",
			EnvLegacyCredentials: `{"workspaceUrl":"https://legacy.example.com/v1/workspaces/d"}`,
		}),
		Logger: testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{
		WorkspaceURL: "https://flags.example.com/v1/workspaces/e",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://flags.example.com/v1/workspaces/e", cfg.WorkspaceURL)
}

func TestResolve_EmptyHigherSourceKeepsLowerValue(t *testing.T) {
	r := &Resolver{
		Store: &fakeStore{state: &CachedAuthState{
			WorkspaceURL:    "https://cache.example.com/v1/workspaces/b",
			AccountUsername: "cached-user@example.com",
		}},
		Getenv: mapEnv(map[string]string{
			EnvClientID: "env-client", // env source present, but URL unset there
		}),
		Logger: testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{})
	require.NoError(t, err)
	assert.Equal(t, "https://cache.example.com/v1/workspaces/b", cfg.WorkspaceURL)
	assert.Equal(t, "cached-user@example.com", cfg.AccountUsername)
}

func TestResolve_LegacyVariableOutranksDiscreteVariables(t *testing.T) {
	r := &Resolver{
		Getenv: mapEnv(map[string]string{
			EnvWorkspaceURL:      "https://env.example.com/v1/workspaces/c",
			EnvClientID:          "env-client",
			EnvTenantID:          "env-tenant",
			EnvLegacyCredentials: `{"mode":"service-principal","workspaceUrl":"https://legacy.example.com/v1/workspaces/d","clientId":"legacy-client","clientSecret":"legacy-secret","tenantId":"legacy-tenant"}`,
		}),
		Logger: testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{})
	require.NoError(t, err)

	assert.Equal(t, ModeServicePrincipal, cfg.Mode)
	assert.Equal(t, "https://legacy.example.com/v1/workspaces/d", cfg.WorkspaceURL)
	assert.Equal(t, "legacy-client", cfg.ClientID)
	assert.Equal(t, "legacy-secret", cfg.ClientSecret)
	assert.Equal(t, "legacy-tenant", cfg.TenantID)
}

func TestResolve_MalformedLegacyVariableIgnored(t *testing.T) {
	r := &Resolver{
		Getenv: mapEnv(map[string]string{
			EnvWorkspaceURL:      "https://env.example.com/v1/workspaces/c",
			EnvLegacyCredentials: `{not json`,
		}),
		Logger: testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{})
	require.NoError(t, err, "parse failure must not be fatal")
	assert.Equal(t, "https://env.example.com/v1/workspaces/c", cfg.WorkspaceURL)
}

func TestResolve_ConflictingModeFlags(t *testing.T) {
	r := &Resolver{Logger: testLogger(), Getenv: mapEnv(nil)}

	called := false
	r.LocalToken = func(context.Context, string) (*LocalToken, error) {
		called = true
		return nil, errors.New("unreachable")
	}

	_, err := r.Resolve(context.Background(), Flags{Interactive: true, ServicePrincipal: true})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.False(t, called, "conflict must be detected before any acquisition attempt")
}

func TestResolve_ModeInference(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		flags    Flags
		wantMode Mode
	}{
		{
			name: "client id and tenant imply service principal",
			env: map[string]string{
				EnvClientID: "c",
				EnvTenantID: "t",
				// Secret omitted so fillRequired would prompt; supplied below.
				EnvClientSecret: "s",
				EnvWorkspaceURL: "https://env.example.com/v1/workspaces/x",
			},
			wantMode: ModeServicePrincipal,
		},
		{
			name: "workspace url alone implies interactive",
			env: map[string]string{
				EnvWorkspaceURL: "https://env.example.com/v1/workspaces/x",
			},
			wantMode: ModeInteractive,
		},
		{
			name: "explicit interactive flag wins over credential presence",
			env: map[string]string{
				EnvClientID:     "c",
				EnvTenantID:     "t",
				EnvWorkspaceURL: "https://env.example.com/v1/workspaces/x",
			},
			flags:    Flags{Interactive: true},
			wantMode: ModeInteractive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{Getenv: mapEnv(tt.env), Logger: testLogger()}

			cfg, err := r.Resolve(context.Background(), tt.flags)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, cfg.Mode)
		})
	}
}

func TestResolve_ModePromptWhenUndecidable(t *testing.T) {
	prompter := &fakePrompter{
		selection: string(ModeInteractive),
		inputs:    map[string]string{"Workspace URL": "https://prompted.example.com/v1/workspaces/x"},
	}
	r := &Resolver{
		Getenv:    mapEnv(nil),
		Prompter:  prompter,
		CanPrompt: true,
		Logger:    testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{})
	require.NoError(t, err)

	assert.Equal(t, ModeInteractive, cfg.Mode)
	assert.Equal(t, 1, prompter.selectCalls)
	assert.Equal(t, "https://prompted.example.com/v1/workspaces/x", cfg.WorkspaceURL)
}

func TestResolve_ServicePrincipalMissingTenant(t *testing.T) {
	r := &Resolver{
		Getenv: mapEnv(map[string]string{
			EnvWorkspaceURL: "https://env.example.com/v1/workspaces/x",
		}),
		Logger: testLogger(),
	}

	_, err := r.Resolve(context.Background(), Flags{
		ServicePrincipal: true,
		ClientID:         "client",
		ClientSecret:     "secret",
	})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "tenant id")
	assert.NotContains(t, err.Error(), "secret value", "messages never carry secret material")
}

func TestResolve_NonInteractiveMissingFieldsError(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		flags Flags
		want  string
	}{
		{
			name: "missing workspace url",
			want: "workspace URL is required",
		},
		{
			name: "service principal missing client id",
			env: map[string]string{
				EnvWorkspaceURL: "https://env.example.com/v1/workspaces/x",
			},
			flags: Flags{ServicePrincipal: true},
			want:  "client id is required",
		},
		{
			name: "service principal missing secret",
			env: map[string]string{
				EnvWorkspaceURL: "https://env.example.com/v1/workspaces/x",
				EnvClientID:     "client",
				EnvTenantID:     "tenant",
			},
			want: "client secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{Getenv: mapEnv(tt.env), Logger: testLogger()}

			_, err := r.Resolve(context.Background(), tt.flags)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Msg, tt.want)
		})
	}
}

func TestResolve_PromptsFillServicePrincipalGaps(t *testing.T) {
	prompter := &fakePrompter{
		inputs: map[string]string{
			"Client ID": "prompted-client",
			"Tenant ID": "prompted-tenant",
		},
		secret: "prompted-secret",
	}
	r := &Resolver{
		Getenv: mapEnv(map[string]string{
			EnvWorkspaceURL: "https://env.example.com/v1/workspaces/x",
		}),
		Prompter:  prompter,
		CanPrompt: true,
		Logger:    testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{ServicePrincipal: true})
	require.NoError(t, err)

	assert.Equal(t, "prompted-client", cfg.ClientID)
	assert.Equal(t, "prompted-tenant", cfg.TenantID)
	assert.Equal(t, "prompted-secret", cfg.ClientSecret)
	assert.Equal(t, 1, prompter.secretCalls)
}

func TestResolve_PreviousModelNameRecordedOnOverride(t *testing.T) {
	r := &Resolver{
		Store: &fakeStore{state: &CachedAuthState{
			WorkspaceURL: "https://cache.example.com/v1/workspaces/b",
			ModelName:    "Sales Model",
		}},
		Getenv: mapEnv(nil),
		Logger: testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{ModelName: "Sales Model v2"})
	require.NoError(t, err)

	assert.Equal(t, "Sales Model v2", cfg.ModelName)
	assert.Equal(t, "Sales Model", cfg.PreviousModelName)
}

func TestResolve_NoPreviousNameWithoutOverride(t *testing.T) {
	r := &Resolver{
		Store: &fakeStore{state: &CachedAuthState{
			WorkspaceURL: "https://cache.example.com/v1/workspaces/b",
			ModelName:    "Sales Model",
		}},
		Getenv: mapEnv(nil),
		Logger: testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{})
	require.NoError(t, err)

	assert.Equal(t, "Sales Model", cfg.ModelName)
	assert.Empty(t, cfg.PreviousModelName)
}

func TestResolve_LocalTokenFallback(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	tests := []struct {
		name      string
		state     *CachedAuthState
		fallback  TokenFallback
		wantToken string
		wantUser  string
	}{
		{
			name: "applied when interactive and no token",
			fallback: func(_ context.Context, workspaceURL string) (*LocalToken, error) {
				assert.Equal(t, "https://cache.example.com/v1/workspaces/b", workspaceURL)
				return &LocalToken{AccessToken: "local-token", ExpiresOn: expires, Username: "az-user@example.com"}, nil
			},
			wantToken: "local-token",
			wantUser:  "az-user@example.com",
		},
		{
			name:  "skipped when a token is already present",
			state: &CachedAuthState{AccessToken: "cached-token", AccountUsername: "cached-user"},
			fallback: func(context.Context, string) (*LocalToken, error) {
				// If this ran, the poisoned token would surface in the assert.
				return &LocalToken{AccessToken: "must-not-be-used"}, nil
			},
			wantToken: "cached-token",
			wantUser:  "cached-user",
		},
		{
			name: "failure is not fatal",
			fallback: func(context.Context, string) (*LocalToken, error) {
				return nil, errors.New("az not installed")
			},
			wantToken: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.state
			if state == nil {
				state = &CachedAuthState{}
			}
			state.WorkspaceURL = "https://cache.example.com/v1/workspaces/b"

			r := &Resolver{
				Store:      &fakeStore{state: state},
				Getenv:     mapEnv(nil),
				LocalToken: tt.fallback,
				Logger:     testLogger(),
			}

			cfg, err := r.Resolve(context.Background(), Flags{})
			require.NoError(t, err)

			assert.Equal(t, ModeInteractive, cfg.Mode)
			assert.Equal(t, tt.wantToken, cfg.AccessToken)
			if tt.wantUser != "" {
				assert.Equal(t, tt.wantUser, cfg.AccountUsername)
			}
		})
	}
}

func TestResolve_TrailingSlashTrimmed(t *testing.T) {
	r := &Resolver{
		Getenv: mapEnv(map[string]string{
			EnvWorkspaceURL: "https://env.example.com/v1/workspaces/x/",
		}),
		Logger: testLogger(),
	}

	cfg, err := r.Resolve(context.Background(), Flags{})
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/v1/workspaces/x", cfg.WorkspaceURL)
}

func TestRedact_NeverContainsSecret(t *testing.T) {
	cfg := &AuthConfig{
		Mode:         ModeServicePrincipal,
		WorkspaceURL: "https://env.example.com/v1/workspaces/x",
		ClientID:     "client",
		ClientSecret: "super-secret-value",
		TenantID:     "tenant",
		AccessToken:  "token",
	}

	state := cfg.Redact()

	restored := &AuthConfig{}
	merge(restored, state.values())

	assert.Empty(t, restored.ClientSecret, "round-trip must not reintroduce the secret")
	assert.Equal(t, "client", restored.ClientID)
	assert.Equal(t, "token", restored.AccessToken)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in     string
		want   Mode
		wantOK bool
	}{
		{"interactive", ModeInteractive, true},
		{"service-principal", ModeServicePrincipal, true},
		{"", ModeUnset, false},
		{"ServicePrincipal", ModeUnset, false},
		{"oauth", ModeUnset, false},
	}

	for _, tt := range tests {
		got, ok := ParseMode(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
	}
}
