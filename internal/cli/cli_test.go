// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/tqarchive"
	"github.com/woozymasta/tqarchive/internal/config"
)

var fixtureStrings = []string{"itemNameTag", "itemLevel", "lootRightHand", "chanceToEquipRightHand", "tagSword"}

func fixtureRecords() []*tqarchive.Record {
	sword := tqarchive.NewRecord(`records\items\sword01.dbr`, "Weapon")
	sword.Set(tqarchive.NewStringVariable(0, "itemNameTag", "tagSword"))
	sword.Set(tqarchive.NewIntVariable(1, "itemLevel", 10))

	rat := tqarchive.NewRecord(`records\creatures\rat.dbr`, "Monster")
	rat.Set(tqarchive.NewStringVariable(2, "lootRightHand", `records\items\sword01.dbr;records\items\gone.dbr`))
	rat.Set(tqarchive.NewIntVariable(3, "chanceToEquipRightHand", 30))

	return []*tqarchive.Record{sword, rat}
}

// fixture holds the files of one test.
type fixture struct {
	dir      string
	config   string
	database string
	archive  string
}

func newFixture(t *testing.T, configYAML string) *fixture {
	t.Helper()

	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		config:   filepath.Join(dir, "tqarz.yaml"),
		database: filepath.Join(dir, "database.arz"),
		archive:  filepath.Join(dir, "text.arc"),
	}

	require.NoError(t, os.WriteFile(f.config, []byte(configYAML), 0o600))

	data, err := tqarchive.BuildDatabase(fixtureRecords(), tqarchive.DatabaseBuildOptions{Strings: fixtureStrings})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.database, data, 0o600))

	_, err = tqarchive.WriteArchiveFile(context.Background(), f.archive, []tqarchive.ArchiveInput{
		{Path: "text/commonequipment.txt", Data: []byte("tagSword=Sword of Fire\r\n")},
		{Path: "sounds/click.wav", Data: bytes.Repeat([]byte{0, 1}, 512)},
	}, tqarchive.ArchiveWriteOptions{})
	require.NoError(t, err)

	return f
}

// run executes one tqarz invocation and returns stdout.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", f.config}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "database:\n  backup_keep: 0\n")

	out, err := f.run(t, "ls", f.database)
	require.NoError(t, err)
	assert.Contains(t, out, `RECORDS\ITEMS\SWORD01.DBR`)
	assert.Contains(t, out, "Weapon")
	assert.Contains(t, out, "2 records, tq format")

	out, err = f.run(t, "ls", f.database, "records/creatures")
	require.NoError(t, err)
	assert.NotContains(t, out, "SWORD01")
	assert.Contains(t, out, "1 records")

	out, err = f.run(t, "ls", f.archive)
	require.NoError(t, err)
	assert.Contains(t, out, "text/commonequipment.txt")
	assert.Contains(t, out, "2 entries, 1.0 KiB")
}

func TestLsUnknownFormat(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	junk := filepath.Join(f.dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, bytes.Repeat([]byte{0xAB}, 64), 0o600))

	_, err := f.run(t, "ls", junk)
	require.ErrorIs(t, err, tqarchive.ErrUnknownFormat)
}

func TestCat(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	out, err := f.run(t, "cat", f.database, "records/items/sword01.dbr")
	require.NoError(t, err)
	assert.Equal(t, fixtureRecords()[0].String(), out)

	out, err = f.run(t, "cat", f.archive, "text/commonequipment.txt")
	require.NoError(t, err)
	assert.Equal(t, "tagSword=Sword of Fire\r\n", out)

	_, err = f.run(t, "cat", f.database, "records/items/missing.dbr")
	require.ErrorIs(t, err, tqarchive.ErrEntryNotFound)
}

func TestSetAndRestore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	store := filepath.Join(f.dir, "snapshots.db")
	require.NoError(t, os.WriteFile(f.config, []byte("database:\n  backup_keep: 1\n  snapshot_store: "+store+"\n"), 0o600))

	out, err := f.run(t, "set", f.database, "records/items/sword01.dbr", "itemLevel,1,Integer,42,", "itemText,9,StringVar,A fine blade,")
	require.NoError(t, err)
	assert.Contains(t, out, "itemLevel,1,Integer,42,")

	out, err = f.run(t, "cat", f.database, "records/items/sword01.dbr")
	require.NoError(t, err)
	assert.Contains(t, out, "itemLevel,1,Integer,42,")
	assert.Contains(t, out, "A fine blade")
	assert.FileExists(t, f.database+".bak")

	out, err = f.run(t, "restore", f.database, "records/items/sword01.dbr")
	require.NoError(t, err)
	assert.Equal(t, fixtureRecords()[0].String(), out)

	_, err = f.run(t, "set", f.database, "records/items/sword01.dbr", "not a variable")
	require.ErrorIs(t, err, tqarchive.ErrInvalidVariableText)
}

func TestRestoreWithoutStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	_, err := f.run(t, "set", f.database, "records/items/sword01.dbr", "itemLevel,1,Integer,42,")
	require.NoError(t, err)

	out, err := f.run(t, "restore", f.database, "records/items/sword01.dbr")
	require.ErrorIs(t, err, tqarchive.ErrNoBackup)
	assert.NotContains(t, out, "itemLevel,1,Integer,42,")

	out, err = f.run(t, "cat", f.database, "records/items/sword01.dbr")
	require.NoError(t, err)
	assert.Contains(t, out, "itemLevel,1,Integer,42,")
}

func TestExtract(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	dbOut := filepath.Join(f.dir, "records")
	out, err := f.run(t, "extract", f.database, dbOut, "--include", "records/items/**")
	require.NoError(t, err)
	assert.Contains(t, out, "extracted 1 entries")

	text, err := os.ReadFile(filepath.Join(dbOut, "RECORDS", "ITEMS", "SWORD01.DBR"))
	require.NoError(t, err)
	assert.Equal(t, fixtureRecords()[0].String(), string(text))
	assert.NoFileExists(t, filepath.Join(dbOut, "RECORDS", "CREATURES", "RAT.DBR"))

	arcOut := filepath.Join(f.dir, "files")
	_, err = f.run(t, "extract", f.archive, arcOut, "--exclude", "*.wav", "--workers", "1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(arcOut, "text", "commonequipment.txt"))
	assert.NoFileExists(t, filepath.Join(arcOut, "sounds", "click.wav"))
}

func TestStrings(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	out, err := f.run(t, "strings", f.database, "RightHand")
	require.NoError(t, err)
	assert.Equal(t, "2\tlootRightHand\n3\tchanceToEquipRightHand\n", out)

	out, err = f.run(t, "strings", f.database, "RightHand", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "2\tlootRightHand\n", out)
}

func TestRefs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	out, err := f.run(t, "refs", f.database, "records/creatures/rat.dbr", "--text", f.archive)
	require.NoError(t, err)
	assert.Contains(t, out, "RECORDS\\ITEMS\\SWORD01.DBR\tWeapon\tSwordofFire\n")
	assert.Contains(t, out, "RECORDS\\ITEMS\\GONE.DBR\t(missing)\n")
	assert.Contains(t, out, "lootRightHand\tchanceToEquipRightHand=30\n")
}

func TestRefsSkipsDamagedTextEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	arc, err := tqarchive.OpenArchive(f.archive)
	require.NoError(t, err)
	click, ok := arc.Entry("sounds/click.wav")
	require.NoError(t, arc.Close())
	require.True(t, ok)
	require.Equal(t, tqarchive.StorageParts, click.Storage)

	data, err := os.ReadFile(f.archive)
	require.NoError(t, err)
	data[click.Offset], data[click.Offset+1] = 0, 0
	require.NoError(t, os.WriteFile(f.archive, data, 0o600))

	out, err := f.run(t, "refs", f.database, "records/creatures/rat.dbr", "--text", f.archive)
	require.NoError(t, err)
	assert.Contains(t, out, "RECORDS\\ITEMS\\SWORD01.DBR\tWeapon\tSwordofFire\n")
}

// variableBlock encodes one variable as stored in a record block.
func variableBlock(tag, count uint16, nameID uint32, values ...uint32) []byte {
	out := binary.LittleEndian.AppendUint16(nil, tag)
	out = binary.LittleEndian.AppendUint16(out, count)
	out = binary.LittleEndian.AppendUint32(out, nameID)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, v)
	}

	return out
}

// writeDamagedDatabase writes a database whose second record declares
// three values but stores two.
func writeDamagedDatabase(t *testing.T, path string) {
	t.Helper()

	blocks := [][]byte{
		variableBlock(0, 1, 0, 7),
		variableBlock(0, 3, 0, 5, 6),
	}

	out := make([]byte, 24)
	var offsets, sizes []uint32
	for _, b := range blocks {
		var zb bytes.Buffer
		zw := zlib.NewWriter(&zb)
		_, err := zw.Write(b)
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		offsets = append(offsets, uint32(len(out)-24)) //nolint:gosec // tiny fixture
		sizes = append(sizes, uint32(zb.Len()))        //nolint:gosec // tiny fixture
		out = append(out, zb.Bytes()...)
	}

	rtStart := len(out)
	for i := range blocks {
		out = binary.LittleEndian.AppendUint32(out, uint32(i+1)) //nolint:gosec // tiny fixture
		out = binary.LittleEndian.AppendUint32(out, 4)
		out = append(out, "Item"...)
		out = binary.LittleEndian.AppendUint32(out, offsets[i])
		out = binary.LittleEndian.AppendUint32(out, sizes[i])
		out = binary.LittleEndian.AppendUint64(out, 0)
	}
	rtSize := len(out) - rtStart

	stStart := len(out)
	strs := []string{"itemLevel", `records\good.dbr`, `records\bad.dbr`}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(strs))) //nolint:gosec // tiny fixture
	for _, s := range strs {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s))) //nolint:gosec // tiny fixture
		out = append(out, s...)
	}
	stSize := len(out) - stStart

	binary.LittleEndian.PutUint16(out[0:], 2)
	binary.LittleEndian.PutUint16(out[2:], 3)
	for i, v := range []int{rtStart, rtSize, len(blocks), stStart, stSize} {
		binary.LittleEndian.PutUint32(out[4+i*4:], uint32(v)) //nolint:gosec // tiny fixture
	}

	require.NoError(t, os.WriteFile(path, out, 0o600))
}

func TestCheckAndFix(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "database:\n  backup_keep: 0\n")
	damaged := filepath.Join(f.dir, "damaged.arz")
	writeDamagedDatabase(t, damaged)

	out, err := f.run(t, "check", damaged)
	require.Error(t, err)
	assert.Contains(t, out, `RECORDS\BAD.DBR`)
	assert.Contains(t, out, "checked 2, failed 1")

	out, err = f.run(t, "fix", damaged)
	require.NoError(t, err)
	assert.Contains(t, out, "fixed\tRECORDS\\BAD.DBR\tclamped variable itemLevel from 3 to 2 values")
	assert.Contains(t, out, "scanned 2, repaired 1, failed 0")

	out, err = f.run(t, "check", damaged, "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "checked 2, failed 0")

	out, err = f.run(t, "cat", damaged, "records/bad.dbr")
	require.NoError(t, err)
	assert.Equal(t, "itemLevel,0,Integer,5&6,\n", out)

	out, err = f.run(t, "check", f.archive)
	require.NoError(t, err)
	assert.Contains(t, out, "checked 2, failed 0")
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "extract:\n  workers: -1\n")

	_, err := f.run(t, "ls", f.database)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLogLevelFlag(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--config", f.config, "--log-level", "debug", "ls", f.database})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.True(t, strings.Contains(errOut.String(), "database opened"), "debug log missing: %q", errOut.String())
}
