package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const credentialFormatVersion = 1

const maxFieldLen = 1<<16 - 1

// Encode serializes c in the current binary format.
//
// Layout: version byte, mode byte, five uint16-length-prefixed strings (token,
// client id, client secret, access token, refresh token), then the big-endian
// int64 SavedAt.
func Encode(c *Credentials) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil credentials")
	}
	if c.Mode > ModeOAuth {
		return nil, errors.New("invalid credential mode")
	}

	var buf bytes.Buffer
	buf.WriteByte(credentialFormatVersion)
	buf.WriteByte(byte(c.Mode))

	for _, field := range []string{
		c.Token,
		c.OAuth.ClientID,
		c.OAuth.ClientSecret,
		c.OAuth.AccessToken,
		c.OAuth.RefreshToken,
	} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, c.SavedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a record written by [Encode].
func Decode(data []byte) (*Credentials, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != credentialFormatVersion {
		return nil, errors.New("invalid credential version")
	}

	mode, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if Mode(mode) > ModeOAuth {
		return nil, errors.New("invalid credential mode")
	}

	c := &Credentials{Mode: Mode(mode)}
	for _, dst := range []*string{
		&c.Token,
		&c.OAuth.ClientID,
		&c.OAuth.ClientSecret,
		&c.OAuth.AccessToken,
		&c.OAuth.RefreshToken,
	} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &c.SavedAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in credential record")
	}

	return c, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxFieldLen {
		return errors.New("credential field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}
