// Package fileutil provides directory scanning for run logs.
//
// ScanDirectory lists the regular files directly inside a directory,
// filtered by extension, and returns each with its size and modification
// time. Subdirectories and hidden files are skipped. Non-fatal errors
// (entries that vanish or cannot be stat'ed) are collected in
// ScanResult.Errors and the scan continues. Output is sorted by path so
// repeated scans of the same directory are deterministic.
//
// Example:
//
//	result, err := fileutil.ScanDirectory(cellDir, fileutil.ScanOptions{
//		Extensions: []string{".json", ".jsonl"},
//	})
//	if err != nil {
//		return err
//	}
//	for _, f := range result.Files {
//		fmt.Println(f.Path, f.Size)
//	}
package fileutil
