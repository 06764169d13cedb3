package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := &Credentials{
		Mode: ModeOAuth,
		OAuth: OAuthCredential{
			ClientID:     "cid",
			ClientSecret: "secret",
			AccessToken:  "access",
			RefreshToken: "refresh",
		},
		SavedAt: 1700000000,
	}

	data, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, byte(credentialFormatVersion), data[0])

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	good, err := Encode(&Credentials{Mode: ModePasswordToken, Token: "abc"})
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":         {},
		"bad version":   append([]byte{9}, good[1:]...),
		"bad mode":      append([]byte{good[0], 7}, good[2:]...),
		"truncated":     good[:len(good)-3],
		"trailing data": append(append([]byte{}, good...), 0x01),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.Error(t, err)
		})
	}
}

func TestEncodeRejectsInvalidInput(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)

	_, err = Encode(&Credentials{Mode: Mode(42)})
	assert.Error(t, err)

	_, err = Encode(&Credentials{Mode: ModePasswordToken, Token: string(make([]byte, maxFieldLen+1))})
	assert.Error(t, err)
}
