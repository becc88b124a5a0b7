package commands

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cryptoshred/internal/crypto/domain"
	cryptoService "github.com/allisson/cryptoshred/internal/crypto/service"
	"github.com/allisson/cryptoshred/internal/testutil"
)

// Manual mocks for KMS since they might not be generated in all environments
type MockKMSService struct {
	mock.Mock
}

func (m *MockKMSService) OpenKeeper(ctx context.Context, uri string) (cryptoDomain.KMSKeeper, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cryptoDomain.KMSKeeper), args.Error(1)
}

type MockKMSKeeper struct {
	mock.Mock
}

func (m *MockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Close() error {
	return m.Called().Error(0)
}

func localSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

var masterKeysLine = regexp.MustCompile(`(?m)^MASTER_KEYS="([^"]+)"$`)

func printedMasterKeys(t *testing.T, output string) string {
	t.Helper()
	match := masterKeysLine.FindStringSubmatch(output)
	require.Len(t, match, 2, "output has no MASTER_KEYS line:\n%s", output)
	return match[1]
}

func TestRunCreateMasterKey(t *testing.T) {
	ctx := context.Background()
	logger := testutil.DiscardLogger()

	t.Run("plaintext", func(t *testing.T) {
		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, &MockKMSService{}, logger, &out, 3, "", "")
		require.NoError(t, err)

		assert.NotContains(t, out.String(), "KMS_KEY_URI")
		assert.Contains(t, out.String(), `ACTIVE_MASTER_KEY_VERSION="3"`)

		chain, err := cryptoDomain.ParseMasterKeyChain(printedMasterKeys(t, out.String()), 3)
		require.NoError(t, err)
		defer chain.Close()
		assert.Equal(t, []uint{3}, chain.Versions())
	})

	t.Run("kms round trip", func(t *testing.T) {
		uri := localSecretsURI(t)
		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, cryptoService.NewKMSService(), logger, &out, 1, "localsecrets", uri)
		require.NoError(t, err)

		assert.Contains(t, out.String(), `KMS_PROVIDER="localsecrets"`)
		assert.Contains(t, out.String(), `KMS_KEY_URI="`+uri+`"`)

		chain, err := cryptoService.LoadMasterKeyChain(ctx, cryptoService.MasterKeySource{
			Keys:          printedMasterKeys(t, out.String()),
			ActiveVersion: 1,
			KMSProvider:   "localsecrets",
			KMSKeyURI:     uri,
		}, cryptoService.NewKMSService(), logger)
		require.NoError(t, err)
		defer chain.Close()
		assert.Equal(t, uint(1), chain.ActiveVersion())
	})

	t.Run("kms open failure", func(t *testing.T) {
		kms := &MockKMSService{}
		kms.On("OpenKeeper", ctx, "awskms://bad").Return(nil, errors.New("boom"))

		err := RunCreateMasterKey(ctx, kms, logger, &bytes.Buffer{}, 1, "awskms", "awskms://bad")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open KMS keeper")
		kms.AssertExpectations(t)
	})

	t.Run("kms encrypt failure closes keeper", func(t *testing.T) {
		kms := &MockKMSService{}
		keeper := &MockKMSKeeper{}
		kms.On("OpenKeeper", ctx, "hashivault://key").Return(keeper, nil)
		keeper.On("Encrypt", ctx, mock.AnythingOfType("[]uint8")).Return(nil, errors.New("sealed"))
		keeper.On("Close").Return(nil)

		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, kms, logger, &out, 1, "hashivault", "hashivault://key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to encrypt master key with KMS")
		assert.Empty(t, out.String())
		keeper.AssertExpectations(t)
	})

	t.Run("zero version", func(t *testing.T) {
		err := RunCreateMasterKey(ctx, &MockKMSService{}, logger, &bytes.Buffer{}, 0, "", "")
		assert.Error(t, err)
	})
}

func TestMasterKeyVersions(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []uint
		wantErr bool
	}{
		{name: "single", input: "1:a2V5", want: []uint{1}},
		{name: "unordered", input: "2:a2V5,7:a2V5, 3:a2V5", want: []uint{2, 3, 7}},
		{name: "repeated", input: "2:a2V5,2:a2V5", want: []uint{2}},
		{name: "trailing comma", input: "4:a2V5,", want: []uint{4}},
		{name: "missing separator", input: "a2V5", wantErr: true},
		{name: "zero version", input: "0:a2V5", wantErr: true},
		{name: "non numeric version", input: "prod:a2V5", wantErr: true},
		{name: "empty", input: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := masterKeyVersions(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
