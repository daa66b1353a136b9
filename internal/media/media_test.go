package media

import (
	"bytes"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/loadcycle.report/internal/detect"
	"github.com/banshee-data/loadcycle.report/internal/fsutil"
)

func TestParseProbeOutput(t *testing.T) {
	data := []byte(`{
		"streams": [{
			"width": 1920, "height": 1080,
			"r_frame_rate": "30000/1001",
			"avg_frame_rate": "30000/1001",
			"nb_frames": "900",
			"duration": "30.03"
		}],
		"format": {"duration": "30.03"}
	}`)

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.FrameCount != 900 {
		t.Errorf("FrameCount = %d, want 900", info.FrameCount)
	}
	if info.FPS < 29.96 || info.FPS > 29.98 {
		t.Errorf("FPS = %v, want ~29.97", info.FPS)
	}
	if info.Duration != 30.03 {
		t.Errorf("Duration = %v, want 30.03", info.Duration)
	}
}

func TestParseProbeOutputEstimatesFrameCount(t *testing.T) {
	data := []byte(`{
		"streams": [{"width": 640, "height": 480, "r_frame_rate": "25/1"}],
		"format": {"duration": "10.0"}
	}`)
	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}
	if info.FrameCount != 250 {
		t.Errorf("FrameCount = %d, want 250 (estimated from duration)", info.FrameCount)
	}
}

func TestParseProbeOutputErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no streams", `{"streams": []}`},
		{"zero dimensions", `{"streams": [{"width": 0, "height": 0, "r_frame_rate": "25/1"}]}`},
		{"no frame rate", `{"streams": [{"width": 10, "height": 10, "r_frame_rate": "0/0"}]}`},
		{"not json", `moo`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseProbeOutput([]byte(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"25/1", 25, false},
		{"30", 30, false},
		{"30000/1001", 29.97002997002997, false},
		{"", 0, true},
		{"0/0", 0, true},
		{"x/1", 0, true},
		{"1/0", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRational(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRational(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseRational(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFrameRGBARoundTrip(t *testing.T) {
	f := NewFrame(0, 4, 3)
	for i := range f.Pix {
		f.Pix[i] = byte(i * 7)
	}

	img := f.RGBA()
	g := NewFrame(0, 4, 3)
	if err := g.SetRGBA(img); err != nil {
		t.Fatalf("SetRGBA() error = %v", err)
	}
	if !bytes.Equal(f.Pix, g.Pix) {
		t.Error("RGBA round trip lost pixel data")
	}

	if err := NewFrame(0, 2, 2).SetRGBA(img); err == nil {
		t.Error("SetRGBA with mismatched dimensions should fail")
	}
}

func TestFrameEncodeJPEG(t *testing.T) {
	f := NewFrame(7, 32, 24)
	data, err := f.EncodeJPEG(90)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("produced invalid JPEG: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 24 {
		t.Errorf("JPEG is %dx%d, want 32x24", cfg.Width, cfg.Height)
	}
}

func TestAnnotateDrawsBoxes(t *testing.T) {
	f := NewFrame(0, 200, 100)
	dets := []detect.Detection{{
		Box:        detect.Box{X1: 50, Y1: 30, X2: 150, Y2: 80},
		ClassID:    detect.ClassTruckFull,
		ClassName:  "truck_full",
		Confidence: 0.95,
	}}

	Annotate(f, dets, HUD{Ritase: 2, Passing: 5})

	// The border pixel at the box's top edge must carry the class color.
	img := f.RGBA()
	c := img.RGBAAt(100, 30)
	want := classColors[detect.ClassTruckFull]
	if c != want {
		t.Errorf("border pixel = %v, want %v", c, want)
	}

	// Something was drawn for the HUD: the top-left strip isn't all black.
	allBlack := true
	for x := 0; x < 100 && allBlack; x++ {
		for y := 0; y < 20; y++ {
			if px := img.RGBAAt(x, y); px.R != 0 || px.G != 0 || px.B != 0 {
				allBlack = false
				break
			}
		}
	}
	if allBlack {
		t.Error("HUD area untouched after Annotate")
	}
}

func TestFileManagerLayout(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	m, err := NewFileManager(fs, "data")
	if err != nil {
		t.Fatalf("NewFileManager() error = %v", err)
	}

	if !fs.Exists("data/input") || !fs.Exists("data/output") {
		t.Error("media directories not created")
	}

	out := m.Outputs("data/input/site_a.mp4")
	want := OutputSet{
		Video:    "data/output/site_a_results.mp4",
		CSV:      "data/output/site_a_results_tracking.csv",
		Workbook: "data/output/site_a_results_summary.xlsx",
		Charts:   "data/output/site_a_results_charts.html",
		Timeline: "data/output/site_a_results_timeline.png",
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Outputs() mismatch (-want +got):\n%s", diff)
	}

	if got := m.MasterWorkbookPath(); got != "data/output/tracking_reports.xlsx" {
		t.Errorf("MasterWorkbookPath() = %q", got)
	}
}

func TestFileManagerSaveUploadDedup(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	m, err := NewFileManager(fs, "data")
	if err != nil {
		t.Fatal(err)
	}

	p1, err := m.SaveUpload("shift.mp4", strings.NewReader("aaa"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	p2, err := m.SaveUpload("shift.mp4", strings.NewReader("bbb"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	p3, err := m.SaveUpload("shift.mp4", strings.NewReader("ccc"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}

	if p1 != "data/input/shift.mp4" || p2 != "data/input/shift_1.mp4" || p3 != "data/input/shift_2.mp4" {
		t.Errorf("paths = %q, %q, %q", p1, p2, p3)
	}
	data, _ := fs.ReadFile(p2)
	if string(data) != "bbb" {
		t.Errorf("second upload content = %q, want bbb", data)
	}
}

func TestFileManagerRejectsBadNames(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	m, err := NewFileManager(fs, "data")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"", "..", "../etc.mp4", "a/b.mp4", "evil\\.mp4", "notes.txt"} {
		if _, err := m.InputPath(name); err == nil {
			t.Errorf("InputPath(%q) accepted, want error", name)
		}
	}
}

func TestFileManagerListings(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	m, err := NewFileManager(fs, "data")
	if err != nil {
		t.Fatal(err)
	}

	fs.WriteFile("data/input/b.mp4", []byte("x"), 0o644)
	fs.WriteFile("data/input/a.mp4", []byte("x"), 0o644)
	fs.WriteFile("data/input/notes.txt", []byte("x"), 0o644)
	fs.WriteFile("data/output/a_results.mp4", []byte("xyz"), 0o644)

	inputs, err := m.ListInputs()
	if err != nil {
		t.Fatalf("ListInputs() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a.mp4", "b.mp4"}, inputs); diff != "" {
		t.Errorf("ListInputs() mismatch (-want +got):\n%s", diff)
	}

	outputs, err := m.ListOutputs()
	if err != nil {
		t.Fatalf("ListOutputs() error = %v", err)
	}
	if len(outputs) != 1 || outputs[0].Name != "a_results.mp4" || outputs[0].Size != 3 {
		t.Errorf("ListOutputs() = %+v", outputs)
	}
}

func TestFileManagerResolveDownload(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	m, err := NewFileManager(fs, "data")
	if err != nil {
		t.Fatal(err)
	}
	fs.WriteFile("data/output/a_results.mp4", []byte("x"), 0o644)
	fs.WriteFile("data/input/a.mp4", []byte("x"), 0o644)

	if p, err := m.ResolveDownload("a_results.mp4"); err != nil || p != "data/output/a_results.mp4" {
		t.Errorf("ResolveDownload(output) = %q, %v", p, err)
	}
	if p, err := m.ResolveDownload("a.mp4"); err != nil || p != "data/input/a.mp4" {
		t.Errorf("ResolveDownload(input) = %q, %v", p, err)
	}
	if _, err := m.ResolveDownload("missing.mp4"); err == nil {
		t.Error("ResolveDownload(missing) should fail")
	}
	if _, err := m.ResolveDownload("../go.mod"); err == nil {
		t.Error("ResolveDownload with traversal should fail")
	}
}
