package records

import (
	"testing"

	"github.com/stretchr/testify/require"

	"asmgo/internal/codec"
)

func buildHeader(t *testing.T, name string, appletID uint16, flags uint32) []byte {
	t.Helper()
	buf := make([]byte, HeaderSize)
	require.NoError(t, codec.WriteInt(buf, 0x00, 4, SignatureStart))
	require.NoError(t, codec.WriteInt(buf, 0x14, 2, uint32(appletID)))
	require.NoError(t, codec.WriteInt(buf, 0x10, 4, flags))
	require.NoError(t, codec.WriteString(buf, 0x18, 36, name))
	return buf
}

func TestDecodeAppletHeaderRoundTrip(t *testing.T) {
	buf := buildHeader(t, "AlphaWord", AppletIDAlphaWord, FlagHidden)
	h, err := DecodeAppletHeader(buf)
	require.NoError(t, err)
	require.Equal(t, "AlphaWord", h.Name)
	require.Equal(t, AppletIDAlphaWord, h.AppletID)
	require.True(t, h.Hidden())
}

func TestDecodeAppletHeaderRejectsBadSignature(t *testing.T) {
	buf := make([]byte, HeaderSize)
	_, err := DecodeAppletHeader(buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "signature")
}

func TestClassifyAppletRegular(t *testing.T) {
	content := make([]byte, 256)
	require.NoError(t, codec.WriteInt(content, 0, 4, SignatureStart))
	require.NoError(t, codec.WriteInt(content, len(content)-4, 4, SignatureEnd))
	kind, err := ClassifyApplet(content)
	require.NoError(t, err)
	require.Equal(t, AppletKindRegular, kind)
}

func TestClassifyAppletRejectsMissingTrailingSignature(t *testing.T) {
	content := make([]byte, 256)
	require.NoError(t, codec.WriteInt(content, 0, 4, SignatureStart))
	_, err := ClassifyApplet(content)
	require.Error(t, err)
}

func TestClassifyAppletROMSignature(t *testing.T) {
	content := make([]byte, romSignatureOffset+18)
	copy(content[romSignatureOffset:], "System 3          ")
	kind, err := ClassifyApplet(content)
	require.NoError(t, err)
	require.Equal(t, AppletKindSystem3, kind)
	require.Equal(t, "System 3", kind.String())
}

func TestClassifyAppletRejectsUnrecognizedImage(t *testing.T) {
	content := make([]byte, romSignatureOffset+18)
	copy(content[romSignatureOffset:], "Garbage Signature!")
	_, err := ClassifyApplet(content)
	require.Error(t, err)
}
