// Package track implements multi-object tracking over per-frame detections.
// Each detection's bounding-box center feeds a constant-velocity Kalman
// filter in pixel space; detections are matched to tracks with the Hungarian
// algorithm on squared Mahalanobis distances.
package track

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/banshee-data/loadcycle.report/internal/config"
	"github.com/banshee-data/loadcycle.report/internal/detect"
)

// TrackState represents the lifecycle state of a track.
type TrackState string

const (
	TrackTentative TrackState = "tentative" // New track, needs confirmation
	TrackConfirmed TrackState = "confirmed" // Stable track with sufficient history
	TrackDeleted   TrackState = "deleted"   // Track marked for removal
)

// Internal numerical stability constants — not user-tunable.
const (
	// MinDeterminantThreshold is the minimum determinant for covariance matrix inversion
	MinDeterminantThreshold = 1e-6
	// SingularDistanceRejection is the distance returned when covariance is singular
	SingularDistanceRejection = 1e9
)

// TrackerConfig holds configuration parameters for the tracker.
// Distances are pixels, velocities pixels per frame, time steps frames.
type TrackerConfig struct {
	MaxTracks             int     // Maximum number of concurrent tracks
	MaxMisses             int     // Consecutive misses before tentative track deletion
	MaxMissesConfirmed    int     // Consecutive misses before confirmed track deletion (coasting)
	HitsToConfirm         int     // Consecutive hits needed for confirmation
	GatingDistanceSquared float32 // Squared gating distance for association
	ProcessNoisePos       float32 // Process noise for position (σ², px²/frame)
	ProcessNoiseVel       float32 // Process noise for velocity (σ²)
	MeasurementNoise      float32 // Measurement noise (σ², px²)
	OcclusionCovInflation float32 // Extra covariance inflation per occluded frame
	DeletedGraceFrames    int     // Frames to keep deleted tracks before cleanup

	// Kinematics/physics limits
	MaxSpeedPxPerFrame float32 // Maximum plausible speed (px/frame)
	MaxPositionJumpPx  float32 // Maximum position jump between observations (px)
	MaxPredictFrames   float32 // Maximum dt (frames) per predict step
	MaxCovarianceDiag  float32 // Maximum covariance diagonal element

	// History limits
	MaxHistoryLength int // Maximum box history length

	// Detection filtering
	MinConfidence float32 // Per-tracker confidence floor; lower detections are ignored
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
// minConfidence differs per tracker instance (bucket vs truck), so it is
// passed explicitly rather than read from the tuning file.
func TrackerConfigFromTuning(cfg *config.TuningConfig, minConfidence float64) TrackerConfig {
	return TrackerConfig{
		MaxTracks:             cfg.GetMaxTracks(),
		MaxMisses:             cfg.GetMaxMisses(),
		MaxMissesConfirmed:    cfg.GetMaxMissesConfirmed(),
		HitsToConfirm:         cfg.GetHitsToConfirm(),
		GatingDistanceSquared: float32(cfg.GetGatingDistanceSquared()),
		ProcessNoisePos:       float32(cfg.GetProcessNoisePos()),
		ProcessNoiseVel:       float32(cfg.GetProcessNoiseVel()),
		MeasurementNoise:      float32(cfg.GetMeasurementNoise()),
		OcclusionCovInflation: float32(cfg.GetOcclusionCovInflation()),
		DeletedGraceFrames:    cfg.GetDeletedGraceFrames(),
		MaxSpeedPxPerFrame:    float32(cfg.GetMaxSpeedPxPerFrame()),
		MaxPositionJumpPx:     float32(cfg.GetMaxPositionJumpPx()),
		MaxPredictFrames:      5,
		MaxCovarianceDiag:     float32(cfg.GetMaxCovarianceDiag()),
		MaxHistoryLength:      cfg.GetMaxTrackHistoryLength(),
		MinConfidence:         float32(minConfidence),
	}
}

// TrackPoint is one entry in a track's box history.
type TrackPoint struct {
	FrameIndex int
	Box        detect.Box
}

// TrackedObject represents a single tracked object.
type TrackedObject struct {
	// Identity
	TrackID string
	State   TrackState

	// Lifecycle counters
	Hits   int // Consecutive successful associations
	Misses int // Consecutive missed associations

	// Frame bounds
	FirstFrame int
	LastFrame  int

	// Kalman state (pixel frame): [cx, cy, vx, vy]
	CX float32 // Box center X
	CY float32 // Box center Y
	VX float32 // Velocity X (px/frame)
	VY float32 // Velocity Y (px/frame)

	// Kalman covariance (4x4, row-major)
	P [16]float32

	// Aggregated features
	ObservationCount int
	BoxWidthAvg      float32
	BoxHeightAvg     float32

	// Latest matched detection
	LastBox        detect.Box
	ClassID        int
	ClassName      string
	Confidence     float32
	OcclusionCount int

	// History of matched/coasted boxes
	History []TrackPoint
}

// PredictedBox returns the current box estimate: the Kalman center with the
// running-average box dimensions. During coasting this is the coasted
// position rather than the last matched box.
func (o *TrackedObject) PredictedBox() detect.Box {
	hw := o.BoxWidthAvg / 2
	hh := o.BoxHeightAvg / 2
	return detect.Box{X1: o.CX - hw, Y1: o.CY - hh, X2: o.CX + hw, Y2: o.CY + hh}
}

// Tracker manages multi-object tracking with explicit lifecycle states.
// Two instances run per analysis: one for bucket classes, one for trucks.
type Tracker struct {
	Tracks      map[string]*TrackedObject
	NextTrackID int64
	Config      TrackerConfig

	// Last processed frame index for dt computation
	LastFrameIndex int

	// Fragmentation counters
	TracksCreated   int
	TracksConfirmed int

	mu sync.RWMutex
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		Tracks:         make(map[string]*TrackedObject),
		NextTrackID:    1,
		Config:         cfg,
		LastFrameIndex: -1,
	}
}

// Reset clears all tracks and restarts track numbering. Used between runs
// and by the recount tool so each pass starts with clean filter state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Tracks = make(map[string]*TrackedObject)
	t.NextTrackID = 1
	t.LastFrameIndex = -1
	t.TracksCreated = 0
	t.TracksConfirmed = 0
}

// Update processes the detections of one frame and advances all tracks.
// Frames must be presented in increasing index order. Detections below the
// tracker's confidence floor are ignored.
func (t *Tracker) Update(detections []detect.Detection, frameIndex int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Filter by confidence floor and box validity.
	kept := detections[:0:0]
	for _, d := range detections {
		if d.Confidence >= t.Config.MinConfidence && d.Box.IsValid() {
			kept = append(kept, d)
		}
	}

	// dt in frames since the previous update. Clamped so decode gaps don't
	// inflate the gating ellipse; predict() clamps independently.
	var dt float32 = 1
	if t.LastFrameIndex >= 0 {
		dt = float32(frameIndex - t.LastFrameIndex)
		if dt < 1 {
			dt = 1
		}
	}
	if dt > t.Config.MaxPredictFrames {
		dt = t.Config.MaxPredictFrames
	}
	t.LastFrameIndex = frameIndex

	// Step 1: Predict all active tracks to the current frame.
	for _, id := range t.sortedActiveTrackIDs() {
		t.predict(t.Tracks[id], dt)
	}

	// Step 2: Associate detections to tracks using gating.
	activeIDs := t.sortedActiveTrackIDs()
	associations := t.associate(kept, activeIDs, dt)

	// Step 3: Update matched tracks.
	matched := make(map[string]bool)
	for di, trackID := range associations {
		if trackID == "" {
			continue
		}
		track := t.Tracks[trackID]
		t.update(track, kept[di], frameIndex)
		track.Hits++
		track.Misses = 0
		matched[trackID] = true

		// Promote tentative → confirmed
		if track.State == TrackTentative && track.Hits >= t.Config.HitsToConfirm {
			track.State = TrackConfirmed
			t.TracksConfirmed++
		}
	}

	// Step 4: Handle unmatched tracks with occlusion-aware coasting.
	// Confirmed tracks are allowed more miss frames (MaxMissesConfirmed)
	// than tentative tracks. The predict step above keeps the position
	// estimate coasting; inflating the covariance widens the gate so
	// re-association is easier when the object reappears.
	for _, trackID := range activeIDs {
		track := t.Tracks[trackID]
		if matched[trackID] || track.State == TrackDeleted {
			continue
		}
		track.Misses++
		track.Hits = 0
		track.OcclusionCount++

		if t.Config.OcclusionCovInflation > 0 {
			track.P[0*4+0] += t.Config.OcclusionCovInflation
			track.P[1*4+1] += t.Config.OcclusionCovInflation
			if track.P[0*4+0] > t.Config.MaxCovarianceDiag {
				track.P[0*4+0] = t.Config.MaxCovarianceDiag
			}
			if track.P[1*4+1] > t.Config.MaxCovarianceDiag {
				track.P[1*4+1] = t.Config.MaxCovarianceDiag
			}
		}

		// Append the coasted box to history.
		track.History = append(track.History, TrackPoint{
			FrameIndex: frameIndex,
			Box:        track.PredictedBox(),
		})
		if len(track.History) > t.Config.MaxHistoryLength {
			track.History = track.History[len(track.History)-t.Config.MaxHistoryLength:]
		}

		maxMisses := t.Config.MaxMisses
		if track.State == TrackConfirmed && t.Config.MaxMissesConfirmed > 0 {
			maxMisses = t.Config.MaxMissesConfirmed
		}
		if track.Misses >= maxMisses {
			track.State = TrackDeleted
			track.LastFrame = frameIndex
		}
	}

	// Step 5: Initialise new tracks from unassociated detections.
	for di, trackID := range associations {
		if trackID == "" && len(t.Tracks) < t.Config.MaxTracks {
			t.initTrack(kept[di], frameIndex)
		}
	}

	// Step 6: Cleanup deleted tracks after the grace period.
	t.cleanupDeletedTracks(frameIndex)
}

// sortedActiveTrackIDs returns non-deleted track IDs in creation order.
// Iterating the track map directly would randomise the cost matrix column
// order and with it tie-breaking, making runs non-reproducible.
func (t *Tracker) sortedActiveTrackIDs() []string {
	ids := make([]string, 0, len(t.Tracks))
	for id, track := range t.Tracks {
		if track.State != TrackDeleted {
			ids = append(ids, id)
		}
	}
	// IDs are "track_<n>" with n strictly increasing, so shorter IDs were
	// created earlier and equal lengths sort numerically as strings.
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}

// isFiniteState returns true if every element of the Kalman state vector
// and the covariance matrix diagonal is finite (not NaN or ±Inf). Used as a
// post-predict/update guard against numerical instability.
func isFiniteState(track *TrackedObject) bool {
	for _, v := range []float32{track.CX, track.CY, track.VX, track.VY} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	for i := 0; i < 4; i++ {
		v := float64(track.P[i*4+i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// resetDegenerateTrack zeroes a track whose filter state went non-finite and
// marks it deleted so it cannot contaminate later associations.
func resetDegenerateTrack(track *TrackedObject) {
	track.CX = 0
	track.CY = 0
	track.VX = 0
	track.VY = 0
	track.P = initialCovariance()
	track.State = TrackDeleted
}

func initialCovariance() [16]float32 {
	return [16]float32{
		10, 0, 0, 0, // High position uncertainty
		0, 10, 0, 0,
		0, 0, 1, 0, // Lower velocity uncertainty
		0, 0, 0, 1,
	}
}

// clampVelocity scales VX/VY proportionally so the speed magnitude does not
// exceed MaxSpeedPxPerFrame. This prevents teleport-like extrapolation from
// noisy Kalman updates or degenerate associations.
func (t *Tracker) clampVelocity(track *TrackedObject) {
	speed := float32(math.Sqrt(float64(track.VX*track.VX + track.VY*track.VY)))
	if speed > t.Config.MaxSpeedPxPerFrame {
		scale := t.Config.MaxSpeedPxPerFrame / speed
		track.VX *= scale
		track.VY *= scale
	}
}

// predict applies the Kalman prediction step using the constant velocity model.
func (t *Tracker) predict(track *TrackedObject, dt float32) {
	if dt > t.Config.MaxPredictFrames {
		dt = t.Config.MaxPredictFrames
	}

	// State transition matrix F for constant velocity model:
	// F = [1  0  dt  0 ]
	//     [0  1  0   dt]
	//     [0  0  1   0 ]
	//     [0  0  0   1 ]

	// Predict state: x' = F * x
	track.CX += track.VX * dt
	track.CY += track.VY * dt

	// Predict covariance: P' = F * P * F^T + Q
	P := track.P
	var FP [16]float32
	for j := 0; j < 4; j++ {
		FP[0*4+j] = P[0*4+j] + dt*P[2*4+j]
		FP[1*4+j] = P[1*4+j] + dt*P[3*4+j]
		FP[2*4+j] = P[2*4+j]
		FP[3*4+j] = P[3*4+j]
	}
	for i := 0; i < 4; i++ {
		track.P[i*4+0] = FP[i*4+0] + dt*FP[i*4+2]
		track.P[i*4+1] = FP[i*4+1] + dt*FP[i*4+3]
		track.P[i*4+2] = FP[i*4+2]
		track.P[i*4+3] = FP[i*4+3]
	}

	// Add process noise Q, scaled by dt for correct uncertainty growth
	// regardless of frame gaps.
	track.P[0*4+0] += t.Config.ProcessNoisePos * dt
	track.P[1*4+1] += t.Config.ProcessNoisePos * dt
	track.P[2*4+2] += t.Config.ProcessNoiseVel * dt
	track.P[3*4+3] += t.Config.ProcessNoiseVel * dt

	// Cap covariance diagonal elements to prevent unbounded gating ellipse
	// growth from accumulated prediction steps and occlusion inflation.
	for i := 0; i < 4; i++ {
		if track.P[i*4+i] > t.Config.MaxCovarianceDiag {
			track.P[i*4+i] = t.Config.MaxCovarianceDiag
		}
	}

	if !isFiniteState(track) {
		resetDegenerateTrack(track)
		return
	}

	t.clampVelocity(track)
}

// associate performs detection-to-track association using the Hungarian
// algorithm for globally optimal assignment. The cost matrix is built from
// squared Mahalanobis distances; entries beyond the gate are forbidden.
// Returns a slice indexed by detection: the matched trackID or "".
func (t *Tracker) associate(detections []detect.Detection, activeIDs []string, dt float32) []string {
	associations := make([]string, len(detections))

	nDets := len(detections)
	nTracks := len(activeIDs)
	if nDets == 0 || nTracks == 0 {
		return associations
	}

	costMatrix := make([][]float32, nDets)
	for di := range detections {
		costMatrix[di] = make([]float32, nTracks)
		for tj, trackID := range activeIDs {
			track := t.Tracks[trackID]
			dist2 := t.mahalanobisDistanceSquared(track, detections[di].Box, dt)
			if dist2 >= SingularDistanceRejection || dist2 > t.Config.GatingDistanceSquared {
				costMatrix[di][tj] = float32(hungarianInf)
			} else {
				costMatrix[di][tj] = dist2
			}
		}
	}

	assign := HungarianAssign(costMatrix)
	for di := range detections {
		if di < len(assign) && assign[di] >= 0 && assign[di] < nTracks {
			associations[di] = activeIDs[assign[di]]
		}
	}
	return associations
}

// mahalanobisDistanceSquared computes the squared Mahalanobis distance for
// gating. Uses only the box center for distance computation, with physical
// plausibility checks to reject spurious associations.
func (t *Tracker) mahalanobisDistanceSquared(track *TrackedObject, box detect.Box, dt float32) float32 {
	// Innovation: difference between measurement and prediction
	dx := box.CenterX() - track.CX
	dy := box.CenterY() - track.CY

	// Physical plausibility check: reject if position jump is too large
	euclideanDist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if euclideanDist > t.Config.MaxPositionJumpPx {
		return SingularDistanceRejection
	}

	// Reject if implied speed would be unreasonable
	if dt > 0 {
		impliedSpeed := euclideanDist / dt
		if impliedSpeed > t.Config.MaxSpeedPxPerFrame {
			return SingularDistanceRejection
		}
	}

	// Innovation covariance S = H * P * H^T + R
	// H = [1 0 0 0; 0 1 0 0] (measurement extracts position only)
	S00 := track.P[0*4+0] + t.Config.MeasurementNoise
	S01 := track.P[0*4+1]
	S10 := track.P[1*4+0]
	S11 := track.P[1*4+1] + t.Config.MeasurementNoise

	det := S00*S11 - S01*S10
	if det < MinDeterminantThreshold {
		return SingularDistanceRejection // Singular covariance, reject association
	}

	invS00 := S11 / det
	invS01 := -S01 / det
	invS10 := -S10 / det
	invS11 := S00 / det

	// d² = [dx dy] * S^-1 * [dx dy]^T
	return dx*dx*invS00 + dx*dy*(invS01+invS10) + dy*dy*invS11
}

// update applies the Kalman update step with a matched detection.
func (t *Tracker) update(track *TrackedObject, d detect.Detection, frameIndex int) {
	// Measurement: z = box center
	zX := d.Box.CenterX()
	zY := d.Box.CenterY()

	// Innovation
	yX := zX - track.CX
	yY := zY - track.CY

	// Innovation covariance S = H * P * H^T + R
	S00 := track.P[0*4+0] + t.Config.MeasurementNoise
	S01 := track.P[0*4+1]
	S10 := track.P[1*4+0]
	S11 := track.P[1*4+1] + t.Config.MeasurementNoise

	det := S00*S11 - S01*S10
	if det < MinDeterminantThreshold {
		return // Cannot update with singular covariance
	}

	invS00 := S11 / det
	invS01 := -S01 / det
	invS10 := -S10 / det
	invS11 := S00 / det

	// Kalman gain K = P * H^T * S^-1 (4x2)
	var K [8]float32
	for i := 0; i < 4; i++ {
		K[i*2+0] = track.P[i*4+0]*invS00 + track.P[i*4+1]*invS10
		K[i*2+1] = track.P[i*4+0]*invS01 + track.P[i*4+1]*invS11
	}

	// Update state: x' = x + K * y
	track.CX += K[0*2+0]*yX + K[0*2+1]*yY
	track.CY += K[1*2+0]*yX + K[1*2+1]*yY
	track.VX += K[2*2+0]*yX + K[2*2+1]*yY
	track.VY += K[3*2+0]*yX + K[3*2+1]*yY

	// Update covariance: P' = (I - K*H) * P
	// (K*H)[i,j] = K[i,0] if j==0, K[i,1] if j==1, 0 otherwise
	var IminusKH [16]float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			identity := float32(0)
			if i == j {
				identity = 1
			}
			var kh float32
			if j == 0 {
				kh = K[i*2+0]
			} else if j == 1 {
				kh = K[i*2+1]
			}
			IminusKH[i*4+j] = identity - kh
		}
	}
	var newP [16]float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += IminusKH[i*4+k] * track.P[k*4+j]
			}
			newP[i*4+j] = sum
		}
	}
	track.P = newP

	if !isFiniteState(track) {
		resetDegenerateTrack(track)
		return
	}

	t.clampVelocity(track)

	track.LastFrame = frameIndex
	track.ObservationCount++

	// Running average for box dimensions
	n := float32(track.ObservationCount)
	track.BoxWidthAvg = ((n-1)*track.BoxWidthAvg + d.Box.Width()) / n
	track.BoxHeightAvg = ((n-1)*track.BoxHeightAvg + d.Box.Height()) / n

	// Latest matched detection wins the class label; an excavator bucket
	// changes class as it digs and dumps within one track.
	track.LastBox = d.Box
	track.ClassID = d.ClassID
	track.ClassName = d.ClassName
	track.Confidence = d.Confidence

	track.History = append(track.History, TrackPoint{FrameIndex: frameIndex, Box: d.Box})
	if len(track.History) > t.Config.MaxHistoryLength {
		track.History = track.History[len(track.History)-t.Config.MaxHistoryLength:]
	}
}

// initTrack creates a new tentative track from an unassociated detection.
func (t *Tracker) initTrack(d detect.Detection, frameIndex int) *TrackedObject {
	trackID := fmt.Sprintf("track_%d", t.NextTrackID)
	t.NextTrackID++

	track := &TrackedObject{
		TrackID: trackID,
		State:   TrackTentative,
		Hits:    1,
		Misses:  0,

		FirstFrame: frameIndex,
		LastFrame:  frameIndex,

		CX: d.Box.CenterX(),
		CY: d.Box.CenterY(),
		VX: 0,
		VY: 0,

		P: initialCovariance(),

		ObservationCount: 1,
		BoxWidthAvg:      d.Box.Width(),
		BoxHeightAvg:     d.Box.Height(),

		LastBox:    d.Box,
		ClassID:    d.ClassID,
		ClassName:  d.ClassName,
		Confidence: d.Confidence,

		History: []TrackPoint{{FrameIndex: frameIndex, Box: d.Box}},
	}

	t.Tracks[trackID] = track
	t.TracksCreated++
	return track
}

// cleanupDeletedTracks removes tracks that have been deleted for the grace period.
func (t *Tracker) cleanupDeletedTracks(frameIndex int) {
	var toRemove []string
	for id, track := range t.Tracks {
		if track.State == TrackDeleted && frameIndex-track.LastFrame > t.Config.DeletedGraceFrames {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(t.Tracks, id)
	}
}

// GetActiveTracks returns the currently active (non-deleted) tracks in
// creation order. Each returned TrackedObject is a shallow copy with a
// deep-copied History slice, safe to read without holding the tracker lock.
func (t *Tracker) GetActiveTracks() []*TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := make([]*TrackedObject, 0, len(t.Tracks))
	for _, id := range t.sortedActiveTrackIDs() {
		active = append(active, copyTrack(t.Tracks[id]))
	}
	return active
}

// GetConfirmedTracks returns only confirmed tracks, in creation order.
func (t *Tracker) GetConfirmedTracks() []*TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	confirmed := make([]*TrackedObject, 0)
	for _, id := range t.sortedActiveTrackIDs() {
		if track := t.Tracks[id]; track.State == TrackConfirmed {
			confirmed = append(confirmed, copyTrack(track))
		}
	}
	return confirmed
}

// GetTrack returns a copy of a track by ID, or nil if not found.
func (t *Tracker) GetTrack(trackID string) *TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()
	track, ok := t.Tracks[trackID]
	if !ok {
		return nil
	}
	return copyTrack(track)
}

// GetTrackCount returns counts of tracks by state.
func (t *Tracker) GetTrackCount() (total, tentative, confirmed, deleted int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, track := range t.Tracks {
		total++
		switch track.State {
		case TrackTentative:
			tentative++
		case TrackConfirmed:
			confirmed++
		case TrackDeleted:
			deleted++
		}
	}
	return
}

// GetAllTracks returns copies of all tracks including deleted ones, useful
// for reporting after processing is complete.
func (t *Tracker) GetAllTracks() []*TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.Tracks))
	for id := range t.Tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})

	all := make([]*TrackedObject, 0, len(ids))
	for _, id := range ids {
		all = append(all, copyTrack(t.Tracks[id]))
	}
	return all
}

func copyTrack(track *TrackedObject) *TrackedObject {
	copied := *track
	if len(track.History) > 0 {
		copied.History = make([]TrackPoint, len(track.History))
		copy(copied.History, track.History)
	}
	return &copied
}
