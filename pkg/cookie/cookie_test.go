package cookie

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, codec *Codec, token string) *http.Request {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, codec.Write(w, token, time.Now().Add(5*time.Minute)))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	return req
}

func TestWriteAndRead(t *testing.T) {
	codec, err := New("CMS_Session", "0123456789abcdef0123456789abcdef", "", false)
	require.NoError(t, err)

	req := roundTrip(t, codec, "tok-1")
	token, err := codec.Read(req)
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
}

func TestEncryptedRoundTrip(t *testing.T) {
	codec, err := New("CMS_Session", "0123456789abcdef0123456789abcdef", "abcdefghijklmnop", true)
	require.NoError(t, err)

	req := roundTrip(t, codec, "tok-2")
	token, err := codec.Read(req)
	require.NoError(t, err)
	require.Equal(t, "tok-2", token)
}

func TestTamperedCookieRejected(t *testing.T) {
	codec, err := New("CMS_Session", "0123456789abcdef0123456789abcdef", "", false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "CMS_Session", Value: "raw-token"})
	_, err = codec.Read(req)
	require.Error(t, err)

	_, err = codec.Read(httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, errors.Is(err, http.ErrNoCookie))
}

func TestNewValidatesKeys(t *testing.T) {
	_, err := New("CMS_Session", "short", "", false)
	require.Error(t, err)
	_, err = New("CMS_Session", "0123456789abcdef0123456789abcdef", "bad", false)
	require.Error(t, err)
	_, err = New("", "0123456789abcdef0123456789abcdef", "", false)
	require.Error(t, err)
}
