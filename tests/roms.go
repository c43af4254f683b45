// Package tests holds shared test fixtures: it fetches and caches the
// Spectrum firmware images used by the integration tests.
package tests

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

// Amstrad allows redistribution of the Spectrum firmware for emulation use.
var firmwareURLs = map[string]string{
	"48.rom":    "https://raw.githubusercontent.com/archtaurus/RetroPieBIOS/master/BIOS/48.rom",
	"128-0.rom": "https://raw.githubusercontent.com/archtaurus/RetroPieBIOS/master/BIOS/128-0.rom",
	"128-1.rom": "https://raw.githubusercontent.com/archtaurus/RetroPieBIOS/master/BIOS/128-1.rom",
}

func download(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	tmpf, err := os.CreateTemp(filepath.Dir(dest), "rom-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpf.Name())

	if _, err := io.Copy(tmpf, resp.Body); err != nil {
		tmpf.Close()
		return err
	}
	if err := tmpf.Close(); err != nil {
		return err
	}
	return os.Rename(tmpf.Name(), dest)
}

// FirmwareDir returns a directory containing 48.rom, 128-0.rom and
// 128-1.rom, downloading any missing image first.
func FirmwareDir(tb testing.TB) string {
	return sync.OnceValue(func() string {
		_, b, _, _ := runtime.Caller(0)
		dir := filepath.Join(filepath.Dir(b), "roms")
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			tb.Fatal(err)
		}

		var g errgroup.Group
		g.SetLimit(len(firmwareURLs))
		for name, url := range firmwareURLs {
			dest := filepath.Join(dir, name)
			if _, err := os.Stat(dest); !errors.Is(err, fs.ErrNotExist) {
				continue
			}
			tb.Log("downloading", name)
			g.Go(func() error { return download(url, dest) })
		}
		if err := g.Wait(); err != nil {
			tb.Fatalf("failed to fetch firmware images: %s", err)
		}
		return dir
	})()
}
