package mp4meta

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMP4(t *testing.T, timescale uint32, duration uint64) string {
	t.Helper()
	return writeMP4WithMedia(t, timescale, duration, nil)
}

func writeMP4WithMedia(t *testing.T, timescale uint32, duration uint64, media []byte) string {
	t.Helper()
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "und")
	init.Moov.Mvhd.Timescale = timescale
	init.Moov.Mvhd.Duration = duration

	path := filepath.Join(t.TempDir(), "timelapse.mp4")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"}).Encode(f))
	require.NoError(t, init.Moov.Encode(f))
	if media != nil {
		require.NoError(t, (&mp4.MdatBox{Data: media}).Encode(f))
	}
	return path
}

type fixedDuration float64

func (p fixedDuration) Duration(context.Context, string) (float64, error) {
	return float64(p), nil
}

func TestHeaderDuration(t *testing.T) {
	d, err := HeaderDuration(writeMP4(t, 1000, 60000))
	require.NoError(t, err)
	assert.Equal(t, 60.0, d)
}

func TestHeaderDurationSkipsMediaData(t *testing.T) {
	d, err := HeaderDuration(writeMP4WithMedia(t, 1000, 86400*1000, make([]byte, 4<<20)))
	require.NoError(t, err)
	assert.Equal(t, 86400.0, d)
}

func TestHeaderDurationMissing(t *testing.T) {
	_, err := HeaderDuration(writeMP4(t, 1000, 0))
	assert.ErrorIs(t, err, ErrNoDuration)
}

func TestReaderFallsBack(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "broken.mp4")
	require.NoError(t, os.WriteFile(garbage, []byte("not a movie"), 0o644))

	d, err := New(fixedDuration(42)).Duration(context.Background(), garbage)
	require.NoError(t, err)
	assert.Equal(t, 42.0, d)

	_, err = New(nil).Duration(context.Background(), garbage)
	assert.Error(t, err)

	d, err = New(fixedDuration(42)).Duration(context.Background(), writeMP4(t, 24, 240))
	require.NoError(t, err)
	assert.Equal(t, 10.0, d)
}
