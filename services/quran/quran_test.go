package quran

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quransn/academy/core"
	logsvc "github.com/quransn/academy/services/logger"
)

const ikhlas = `{"code":200,"status":"OK","data":{"number":112,"name":"سورة الإخلاص","englishName":"Al-Ikhlaas",
"englishNameTranslation":"Sincerity","revelationType":"Meccan","numberOfAyahs":4,
"ayahs":[{"number":6222,"text":"قُلْ هُوَ ٱللَّهُ أَحَدٌ","numberInSurah":1,"juz":30,"page":604}],
"edition":{"identifier":"quran-uthmani","language":"ar"}}}`

func TestClient_Surah(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/surah/1/fr.hamidullah" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ikhlas))
	}))
	defer srv.Close()

	conf := core.NewTestConfig()
	conf.Quran.BaseURL = srv.URL
	conf.Quran.Timeout = time.Second
	c := NewClient(conf, logsvc.NewDiscardLogger())
	ctx := context.Background()

	s, err := c.Surah(ctx, 112, "")
	require.NoError(t, err)
	assert.Equal(t, "Al-Ikhlaas", s.EnglishName)
	assert.Equal(t, "quran-uthmani", s.Edition)
	require.Len(t, s.Ayahs, 1)
	assert.Equal(t, 1, s.Ayahs[0].NumberInSurah)
	assert.Equal(t, []string{"/surah/112/quran-uthmani"}, paths)

	_, err = c.Surah(ctx, 1, "fr.hamidullah")
	assert.Equal(t, ErrUnavailable, err)

	for _, tt := range []struct {
		number  int
		edition string
	}{{0, ""}, {115, ""}, {1, "en.sahih"}} {
		_, err = c.Surah(ctx, tt.number, tt.edition)
		var verr *core.ValidationError
		assert.ErrorAs(t, err, &verr, "%d %s", tt.number, tt.edition)
	}
	assert.Len(t, paths, 2, "invalid requests never reach the api")
}
