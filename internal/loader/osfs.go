package loader

import (
	"io/fs"
	"os"
)

func osOpen(name string) (fs.File, error) {
	return os.Open(name)
}
