package cachefs

import (
	"os"
	"testing"
	"time"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/models"
	"github.com/bobmcallan/dividendos/internal/storage/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := common.NewSilentLogger()
	files, err := filestore.New(logger, t.TempDir())
	require.NoError(t, err)
	return NewStore(logger, files)
}

func sampleSet() models.DividendSet {
	tel := models.NewDividendRecord("Telefónica", "15-Ene", "0.30€", "3.2%", "https://www.eleconomista.es/empresa/TELEFONICA")
	tel.Recommendation = &models.Recommendation{Buy: 1, BuyModerate: 2, Hold: 5, Sell: 2}
	tel.TargetPrice = "12.80€"
	tel.PreviousPrice = "11.50€"
	tel.PotentialPct = "11.30%"

	return models.DividendSet{
		Confirmed: []models.DividendRecord{
			tel,
			models.NewDividendRecord("BBVA", "20-Ene", "0.25€", "4.1%", ""),
		},
		Forecast: []models.DividendRecord{
			models.NewDividendRecord("Santander", "01-Feb", "0.15€", "3.8%", "https://www.eleconomista.es/empresa/SANTANDER"),
		},
	}
}

func assertEmptyEnvelope(t *testing.T, env *models.CacheEnvelope) {
	t.Helper()
	require.NotNil(t, env)
	assert.Equal(t, models.CacheShapeEmpty, env.Shape)
	assert.NotNil(t, env.Dividends.Confirmed)
	assert.NotNil(t, env.Dividends.Forecast)
	assert.Empty(t, env.Dividends.Confirmed)
	assert.Empty(t, env.Dividends.Forecast)
	assert.Nil(t, env.LastUpdate)
	assert.Equal(t, models.CacheSchemaVersion, env.Version)
}

func TestLoad_MissingFile(t *testing.T) {
	s := newTestStore(t)
	assertEmptyEnvelope(t, s.Load())
}

func TestLoad_MalformedFiles(t *testing.T) {
	cases := map[string]string{
		"empty file":       "",
		"not json":         "{{{ nope",
		"json array":       `[1,2,3]`,
		"missing version":  `{"dividendos":{"confirmados":[],"previstos":[]},"lastUpdate":null}`,
		"empty version":    `{"dividendos":[],"version":""}`,
		"string payload":   `{"dividendos":"oops","version":"1.0"}`,
		"null payload":     `{"dividendos":null,"version":"1.0"}`,
		"missing payload":  `{"version":"1.0"}`,
		"groups half":      `{"dividendos":{"confirmados":[]},"version":"1.0"}`,
		"wrong group type": `{"dividendos":{"confirmados":"x","previstos":[]},"version":"1.0"}`,
		"bad timestamp":    `{"dividendos":[],"lastUpdate":"yesterday","version":"1.0"}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0644))
			assertEmptyEnvelope(t, s.Load())
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	set := sampleSet()
	ts := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	require.True(t, s.Save(set, ts))

	env := s.Load()
	assert.Equal(t, models.CacheShapeCurrent, env.Shape)
	assert.Equal(t, set, env.Dividends)
	require.NotNil(t, env.LastUpdate)
	assert.True(t, ts.Equal(*env.LastUpdate))
	assert.Equal(t, "1.0", env.Version)
	assert.False(t, env.CreatedAt.IsZero())
}

func TestSaveLoad_LegacyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	records := sampleSet().Confirmed
	ts := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	require.True(t, s.SaveLegacy(records, ts))

	env := s.Load()
	assert.Equal(t, models.CacheShapeLegacy, env.Shape)
	assert.Equal(t, records, env.Legacy)
	assert.Equal(t, 2, env.RecordCount())
}

func TestLoad_LegacyFileFromOlderRelease(t *testing.T) {
	s := newTestStore(t)
	content := `{
  "dividendos": [
    {"empresa":"Repsol","fecha":"25-Ene","importe":"0.35€","rentabilidad":"5.1%","recomendacion":"Comprar","precioObjetivo":"15.20€","precioAnterior":"14.80€","potencial":"2.7%"}
  ],
  "lastUpdate": "2024-01-10T09:15:00.000Z",
  "version": "1.0",
  "createdAt": "2024-01-10T09:15:00.000Z"
}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0644))

	env := s.Load()
	require.Equal(t, models.CacheShapeLegacy, env.Shape)
	require.Len(t, env.Legacy, 1)
	assert.Equal(t, "Repsol", env.Legacy[0].Company)
	assert.Nil(t, env.Legacy[0].Recommendation, "free-text labels are not guessed")
	assert.Equal(t, "15.20€", env.Legacy[0].TargetPrice)
	require.NotNil(t, env.LastUpdate)
	assert.Equal(t, 2024, env.LastUpdate.Year())
}

func TestSave_BacksUpPreviousEnvelope(t *testing.T) {
	s := newTestStore(t)
	first := sampleSet()
	require.True(t, s.Save(first, time.Now()))

	second := models.DividendSet{Confirmed: first.Confirmed[:1]}
	require.True(t, s.Save(second, time.Now()))

	assert.Equal(t, 1, s.Load().RecordCount())
	data, err := s.files.ReadRaw(backupKey)
	require.NoError(t, err)
	backup, err := decodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, first, backup.Dividends)
}

func TestSave_CorruptCurrentFileDoesNotBlockSave(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("garbage"), 0644))

	require.True(t, s.Save(sampleSet(), time.Now()))
	assert.Equal(t, 3, s.Load().RecordCount())
}

func TestSave_EmptyGroupsStayArrays(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Save(models.DividendSet{}, time.Now()))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"confirmados": []`)
	assert.Contains(t, string(data), `"previstos": []`)
}

func TestInfo(t *testing.T) {
	s := newTestStore(t)

	info := s.Info()
	assert.NotEmpty(t, info.Error, "missing file is reported, not raised")

	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, s.Save(sampleSet(), ts))

	info = s.Info()
	assert.Empty(t, info.Error)
	assert.Equal(t, 3, info.RecordCount)
	assert.Greater(t, info.FileSize, int64(0))
	require.NotNil(t, info.LastModified)
	require.NotNil(t, info.LastUpdate)
	assert.True(t, ts.Equal(*info.LastUpdate))
	assert.Equal(t, "1.0", info.SchemaVersion)
}

func TestClear_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Save(sampleSet(), time.Now()))

	assert.True(t, s.Clear())
	assert.NoFileExists(t, s.Path())
	assert.True(t, s.Clear())
	assertEmptyEnvelope(t, s.Load())
}

func TestInfo_ReportsCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"dividendos": 42}`), 0644))

	info := s.Info()
	assert.Contains(t, info.Error, "unusable cache file")
	assert.Empty(t, info.SchemaVersion)
	assert.Zero(t, info.RecordCount)
	assert.Greater(t, info.FileSize, int64(0))
	assert.NotNil(t, info.LastModified)
}

func TestInfo_ReportsOnDiskVersion(t *testing.T) {
	s := newTestStore(t)
	content := `{"dividendos": [], "lastUpdate": null, "version": "0.9"}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0644))

	info := s.Info()
	assert.Empty(t, info.Error)
	assert.Equal(t, "0.9", info.SchemaVersion)
}
