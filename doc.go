// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

/*
Package tqarchive reads and edits Titan Quest style game containers:
ARC resource archives and ARZ record databases. Grim Dawn variants (lz4
blocks) are readable; write-back is limited to Titan Quest databases.

Database rules (summary):
  - records are keyed by normalized path (upper case, "\" separators);
  - native on-disk order is kept by Keys, Records and Prefix;
  - a duplicated path resolves to its first occurrence;
  - Save replaces one record and leaves every other stored block untouched;
  - Restore re-applies the pristine bytes kept in memory or in a SnapshotStore;
  - Fix rebuilds records with fixable malformations only.

# Reading

Open an archive and read entries:

	a, err := tqarchive.OpenArchive("Text_EN.arc")
	if err != nil {
	    return err
	}
	defer a.Close()
	for _, key := range a.Keys() {
	    data, _ := a.ReadEntry(key)
	    // use data
	}

Open a database and decode a record:

	db, err := tqarchive.OpenDatabase("database.arz")
	if err != nil {
	    return err
	}
	defer db.Close()
	rec, err := db.GetRecord(`records\items\swords\sword01.dbr`)
	if err != nil {
	    return err
	}
	for name, v := range rec.All() {
	    fmt.Println(name, v.ValuesString())
	}

GetItem is the probing variant: it returns nil for dangling references.

# Editing

Mutate variables and save:

	v, _ := rec.Get("itemLevel")
	_ = v.SetInt(0, 42)
	if err := db.Save(rec); err != nil {
	    return err
	}
	// undo
	if err := db.Restore(rec); err != nil {
	    return err
	}

Text editing is layered on top of structured edits:

	v, err := tqarchive.ParseVariable("itemNameTag,42,StringVar,tagSwordOfFire,")
	if err != nil {
	    return err
	}
	rec.Set(v)

Keep pristine records across sessions with a bbolt backed store:

	store, err := tqarchive.OpenBoltSnapshotStore("snapshots.db")
	if err != nil {
	    return err
	}
	defer store.Close()
	db, err := tqarchive.OpenDatabaseWithOptions("database.arz", tqarchive.DatabaseOptions{
	    Store:      store,
	    BackupKeep: 1,
	})

# Repair

	report, err := db.Fix()
	if err != nil {
	    return err
	}
	fmt.Println(report.Repaired, len(report.Failures))

# Extracting

Extract all entries (records are written as variable text):

	err := a.Extract(ctx, "out", tqarchive.ExtractOptions{
	    MaxWorkers: 8,
	})

Extract selected entries by path rules:

	err := a.Extract(ctx, "out", tqarchive.ExtractOptions{
	    Rules: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "*.tex"},
	    },
	})

# Building

	res, err := tqarchive.WriteArchiveFile(ctx, "out.arc", []tqarchive.ArchiveInput{
	    {Path: "text/modstrings.txt", Data: data},
	}, tqarchive.ArchiveWriteOptions{})
*/
package tqarchive
