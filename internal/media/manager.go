package media

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/loadcycle.report/internal/fsutil"
)

// MasterWorkbookName is the rolling cross-run workbook kept in the output
// directory.
const MasterWorkbookName = "tracking_reports.xlsx"

// videoExtensions lists the input container formats we accept.
var videoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

// FileManager owns the on-disk media layout:
//
//	<base>/input/   uploaded or dropped-in source videos
//	<base>/output/  per-run artifacts plus the master workbook
//
// Per-run artifact names derive from the input video's base name with a
// "_results" suffix, so "site_a.mp4" produces "site_a_results.mp4",
// "site_a_results_tracking.csv", and so on.
type FileManager struct {
	fs        fsutil.FileSystem
	inputDir  string
	outputDir string
}

// OutputSet names every artifact of one analysis run.
type OutputSet struct {
	Video    string `json:"video"`
	CSV      string `json:"csv"`
	Workbook string `json:"workbook"`
	Charts   string `json:"charts"`
	Timeline string `json:"timeline"`
}

// NewFileManager creates the input/output directories under baseDir.
func NewFileManager(fs fsutil.FileSystem, baseDir string) (*FileManager, error) {
	m := &FileManager{
		fs:        fs,
		inputDir:  filepath.Join(baseDir, "input"),
		outputDir: filepath.Join(baseDir, "output"),
	}
	for _, dir := range []string{m.inputDir, m.outputDir} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create media dir %s: %w", dir, err)
		}
	}
	return m, nil
}

// InputDir returns the input directory path.
func (m *FileManager) InputDir() string { return m.inputDir }

// OutputDir returns the output directory path.
func (m *FileManager) OutputDir() string { return m.outputDir }

// InputPath resolves a bare video name inside the input directory. Names
// with path separators or traversal elements are rejected.
func (m *FileManager) InputPath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if !videoExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", fmt.Errorf("unsupported video extension in %q", name)
	}
	return filepath.Join(m.inputDir, name), nil
}

// OutputPath resolves a bare artifact name inside the output directory.
func (m *FileManager) OutputPath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(m.outputDir, name), nil
}

// MasterWorkbookPath returns the path of the cross-run master workbook.
func (m *FileManager) MasterWorkbookPath() string {
	return filepath.Join(m.outputDir, MasterWorkbookName)
}

// SaveUpload stores an uploaded video in the input directory. When the name
// is taken, a numeric suffix is appended before the extension: first
// "name_1.mp4", then "name_2.mp4", and so on.
func (m *FileManager) SaveUpload(name string, r io.Reader) (string, error) {
	path, err := m.InputPath(name)
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; m.fs.Exists(path); n++ {
		if n > 1000 {
			return "", fmt.Errorf("too many name collisions for %q", name)
		}
		path = fmt.Sprintf("%s_%d%s", base, n, ext)
	}

	w, err := m.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		m.fs.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finish upload: %w", err)
	}
	return path, nil
}

// Outputs returns the artifact paths for the given input video path.
func (m *FileManager) Outputs(inputPath string) OutputSet {
	name := filepath.Base(inputPath)
	base := strings.TrimSuffix(name, filepath.Ext(name)) + "_results"
	join := func(suffix string) string {
		return filepath.Join(m.outputDir, base+suffix)
	}
	return OutputSet{
		Video:    join(".mp4"),
		CSV:      join("_tracking.csv"),
		Workbook: join("_summary.xlsx"),
		Charts:   join("_charts.html"),
		Timeline: join("_timeline.png"),
	}
}

// ListInputs returns the video files in the input directory, sorted by name.
func (m *FileManager) ListInputs() ([]string, error) {
	entries, err := m.fs.ReadDir(m.inputDir)
	if err != nil {
		return nil, fmt.Errorf("list input dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// OutputListing is one output directory entry with its size.
type OutputListing struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ListOutputs returns every file in the output directory, sorted by name.
func (m *FileManager) ListOutputs() ([]OutputListing, error) {
	entries, err := m.fs.ReadDir(m.outputDir)
	if err != nil {
		return nil, fmt.Errorf("list output dir: %w", err)
	}
	var out []OutputListing
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, OutputListing{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ResolveDownload maps a bare file name to a full path in either media
// directory, preferring output. Used by the download endpoint; the name
// validation is the traversal guard.
func (m *FileManager) ResolveDownload(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	outPath := filepath.Join(m.outputDir, name)
	if m.fs.Exists(outPath) {
		return outPath, nil
	}
	inPath := filepath.Join(m.inputDir, name)
	if m.fs.Exists(inPath) {
		return inPath, nil
	}
	return "", fmt.Errorf("no such file: %q", name)
}

// validateName rejects names that could escape the media directories.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty file name")
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
