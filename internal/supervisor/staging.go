package supervisor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// Bundled payload layout under the install's resource root. The installer
// ships either an uncompressed directory or a 7z archive with a sidecar
// build-id token.
const (
	bundleDirName     = "backend"
	bundleArchiveName = "backend.7z"
)

var errBundleMissing = errors.New("bundled backend payload missing")

// ensurePayloadStaged refreshes the staged deployment directory from the
// bundled payload. Packaged installs only; an operator-supplied override dir
// is self-managed and never touched. Returns nil when the staged copy is
// already current.
func (s *Supervisor) ensurePayloadStaged() error {
	if !s.packaged() || s.cfg.OverrideDir != "" {
		return nil
	}

	srcDir := filepath.Join(s.cfg.ResourceRoot, bundleDirName)
	srcArchive := filepath.Join(s.cfg.ResourceRoot, bundleArchiveName)
	haveDir := s.dirExists(srcDir)
	haveArchive := s.fileExists(srcArchive)
	if !haveDir && !haveArchive {
		return fmt.Errorf("%w: expected %s or %s", errBundleMissing, srcDir, srcArchive)
	}

	target := s.cfg.StagedDir
	srcToken := s.bundleBuildID(srcDir, haveDir)
	targetToken := s.readBuildID(filepath.Join(target, buildIDFile))

	// Unreadable tokens on either side force a re-stage: an unnecessary
	// copy is acceptable, silently keeping stale code is not.
	if s.dirExists(target) && srcToken != "" && targetToken != "" && srcToken == targetToken {
		return nil
	}

	if err := s.sys.removeAll(target); err != nil {
		return fmt.Errorf("removing stale staged backend %s: %w", target, err)
	}
	if err := s.sys.mkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating staging parent for %s: %w", target, err)
	}

	if haveDir {
		if err := s.sys.copyTree(srcDir, target); err != nil {
			return fmt.Errorf("copying backend payload %s: %w", srcDir, err)
		}
	} else {
		if err := s.sys.extract(srcArchive, target); err != nil {
			return fmt.Errorf("extracting backend payload %s: %w", srcArchive, err)
		}
	}

	// The token always lands last: copies exclude it and archives carry it
	// in a sidecar, so an interrupted stage leaves the target token-less
	// and the next staleness check forces a re-copy.
	if srcToken != "" && s.readBuildID(filepath.Join(target, buildIDFile)) == "" {
		if err := s.sys.writeFile(filepath.Join(target, buildIDFile), []byte(srcToken+"\n"), 0644); err != nil {
			return fmt.Errorf("writing build id into %s: %w", target, err)
		}
	}
	return nil
}

// bundleBuildID reads the source-side token: inside the payload directory,
// or from the sidecar next to the archive.
func (s *Supervisor) bundleBuildID(srcDir string, haveDir bool) string {
	if haveDir {
		return s.readBuildID(filepath.Join(srcDir, buildIDFile))
	}
	return s.readBuildID(filepath.Join(s.cfg.ResourceRoot, buildIDFile))
}

// readBuildID returns the trimmed token, or "" when unreadable.
func (s *Supervisor) readBuildID(path string) string {
	data, err := s.sys.readFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// copyDir recursively copies src into dst, preserving file modes. The
// build-id token is skipped; ensurePayloadStaged writes it only after the
// payload is fully in place, so a copy that dies halfway can never pass a
// later staleness check.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == buildIDFile {
			return nil
		}
		targetPath := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(targetPath, info.Mode().Perm()|0700)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, targetPath)
		}
		return copyFile(path, targetPath, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// extractArchive unpacks a 7z payload into dst.
func extractArchive(archive, dst string) error {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		targetPath := filepath.Join(dst, filepath.FromSlash(f.Name))
		rel, err := filepath.Rel(dst, targetPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("archive entry escapes target: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.FileInfo().Mode().Perm()|0400)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		if closeErr := out.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}
