// Package storage manages the asset directory of a harvest.
//
// Assets are written through a PendingFile backed by a temporary file in the
// same directory and renamed into place on Commit, so an interrupted or
// failed download never leaves a partial image under its final name.
//
//	m, err := storage.NewManager(outputDir)
//	f, err := m.Create(photoID)
//	if _, err := io.Copy(f, body); err != nil {
//	    f.Abort()
//	}
//	path, err := f.Commit()
package storage
