package engine

import (
	"sort"

	"github.com/samber/lo"
)

// VFile is the lookup result shape returned by FileManager, mirroring
// file_manager.py's __getitem__ dict return of {"size":..., "content":...}.
type VFile struct {
	Size    int
	Content []byte
}

// FileManager holds named in-memory byte blobs ("virtual files"), used by
// READFILE/LIST_FILES/DOWNLOAD, mirroring file_manager.py.
type FileManager struct {
	files map[string][]byte
}

// newFileManager validates that every supplied vfile is a byte blob (the
// Go type system already guarantees this, so the BAD_CONFIG path from
// file_manager.py's isinstance check on the Python side collapses to simply
// accepting a map[string][]byte) and inserts them all.
func newFileManager(initial map[string][]byte) *FileManager {
	fm := &FileManager{files: make(map[string][]byte, len(initial))}
	fm.Insert(initial)
	return fm
}

// Lookup returns the file's size/content, mirroring file_manager.py's
// __getitem__, or ok=false if absent.
func (f *FileManager) Lookup(name string) (VFile, bool) {
	content, ok := f.files[name]
	if !ok {
		return VFile{}, false
	}
	return VFile{Size: len(content), Content: content}, true
}

// Insert adds or overwrites entries - file_manager.py:insert.
func (f *FileManager) Insert(files map[string][]byte) {
	for name, content := range files {
		f.files[name] = content
	}
}

// Prune removes every file - file_manager.py:prune. Dropped from the
// distilled spec's Data Model but present in the original and exposed here
// as Engine.PruneVfiles.
func (f *FileManager) Prune() {
	f.files = make(map[string][]byte)
}

// List returns file names, sorted for stable LIST_FILES output -
// file_manager.py:list.
func (f *FileManager) List() []string {
	names := lo.Keys(f.files)
	sort.Strings(names)
	return names
}
