package handler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	jsoniter "github.com/json-iterator/go"

	"birdwatch/internal/config"
	"birdwatch/internal/logger"
	"birdwatch/internal/model"
	"birdwatch/internal/service/annotate"
	"birdwatch/internal/service/recovery"
	"birdwatch/internal/service/session"
	"birdwatch/internal/service/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrMalformedCommand = errors.New("malformed command")

// Inbound actions.
const (
	ActionAnalyze        = "analyze"
	ActionSaveCapture    = "save_capture"
	ActionDeleteCaptures = "delete_captures"
)

// TimestampLayout is used for the timestamp of every analyze reply.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// FrameSource yields one live frame per call.
type FrameSource interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Analyzer returns the model's raw answer for one JPEG frame.
type Analyzer interface {
	Analyze(ctx context.Context, jpeg []byte) (string, error)
}

// command keeps its arguments raw so a wrongly typed argument still reaches
// the handler of a recognized action.
type command struct {
	Action string              `json:"action"`
	Image  jsoniter.RawMessage `json:"image,omitempty"`
	Frame  jsoniter.RawMessage `json:"frame,omitempty"`
}

var errNotString = errors.New("must be a base64 string")

// stringArg reads an optional string argument. Absent and null read as "".
func stringArg(raw jsoniter.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errNotString
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

// AnalyzeReply is a DetectionResult plus the files saved for it.
type AnalyzeReply struct {
	model.DetectionResult
	CapturedImage     string `json:"captured_image,omitempty"`
	SavedFilename     string `json:"saved_filename,omitempty"`
	AnnotatedFilename string `json:"annotated_filename,omitempty"`
}

// StatusReply acknowledges save_capture and delete_captures.
type StatusReply struct {
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
	Count    *int   `json:"count,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Dispatcher routes the commands of one connection to the services.
type Dispatcher struct {
	source   FrameSource
	analyzer Analyzer
	store    *storage.CaptureStore
	sessions *session.Manager
	renderer *annotate.Renderer
	logger   *logger.Logger
	annotate bool
	quality  int
	now      func() time.Time
}

func NewDispatcher(cfg *config.Config, source FrameSource, analyzer Analyzer, store *storage.CaptureStore,
	sessions *session.Manager, renderer *annotate.Renderer, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		source:   source,
		analyzer: analyzer,
		store:    store,
		sessions: sessions,
		renderer: renderer,
		logger:   logger,
		annotate: cfg.Annotate,
		quality:  cfg.JPEGQuality,
		now:      time.Now,
	}
}

// Dispatch handles one inbound message and returns the reply to send, or nil
// when nothing should be sent. It never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, connectionID string, message []byte) (reply interface{}) {
	log := d.logger.WithConnection(connectionID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Command handler panic: %v\n%s", r, debug.Stack())
			reply = nil
		}
	}()

	var cmd command
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Warning("%v: %v (%d bytes)", ErrMalformedCommand, err, len(message))
		return nil
	}

	switch cmd.Action {
	case ActionAnalyze:
		log.Info("Received analyze request")
		frame, err := stringArg(cmd.Frame)
		if err != nil {
			log.Warning("Invalid client frame: frame %v", err)
			return d.failed(fmt.Sprintf("Invalid frame: frame %v", err))
		}
		return d.analyze(ctx, connectionID, frame)
	case ActionSaveCapture:
		payload, err := stringArg(cmd.Image)
		if err != nil {
			log.Warning("Rejected capture: image %v", err)
			return StatusReply{Status: "error", Error: "image " + err.Error()}
		}
		return d.saveCapture(connectionID, payload)
	case ActionDeleteCaptures:
		count := d.sessions.DeleteArtifacts(connectionID)
		return StatusReply{Status: "deleted", Count: &count}
	default:
		log.Warning("Ignoring unknown action %q", cmd.Action)
		return nil
	}
}

func (d *Dispatcher) failed(err string) AnalyzeReply {
	return AnalyzeReply{DetectionResult: model.DetectionResult{
		Observations: []model.Observation{},
		Count:        0,
		Timestamp:    d.now().Format(TimestampLayout),
		Error:        err,
	}}
}

func (d *Dispatcher) analyze(ctx context.Context, connectionID, clientFrame string) AnalyzeReply {
	log := d.logger.WithConnection(connectionID)

	var frame image.Image
	var err error
	if clientFrame != "" {
		frame, err = storage.DecodeBase64Image(clientFrame)
		if err != nil {
			log.Warning("Invalid client frame: %v", err)
			return d.failed(fmt.Sprintf("Invalid frame: %v", err))
		}
	} else {
		frame, err = d.source.Capture(ctx)
		if err != nil {
			log.Error("Capture failed: %v", err)
			return d.failed(fmt.Sprintf("Could not capture frame from stream: %v", err))
		}
	}

	raw, err := storage.EncodeJPEG(frame, d.quality)
	if err != nil {
		log.Error("Encoding failed: %v", err)
		return d.failed(err.Error())
	}

	text, err := d.analyzer.Analyze(ctx, raw)
	if err != nil {
		log.Error("Analysis failed: %v", err)
		return d.failed(err.Error())
	}

	outcome := recovery.RecoverWithOutcome(text)
	reply := AnalyzeReply{DetectionResult: outcome.Result}
	reply.Timestamp = d.now().Format(TimestampLayout)
	log.Info("Detected %d bird(s) via %s", reply.Count, outcome.Strategy)

	captured := raw
	if path, err := d.persist(connectionID, model.KindRaw, raw); err != nil {
		log.Error("Failed to save capture: %v", err)
	} else {
		reply.SavedFilename = filepath.Base(path)
	}

	if d.annotate && reply.HasBoxes() {
		annotated, err := storage.EncodeJPEG(d.renderer.Render(frame, reply.Observations), d.quality)
		if err != nil {
			log.Error("Encoding annotated frame failed: %v", err)
		} else {
			captured = annotated
			if path, err := d.persist(connectionID, model.KindAnnotated, annotated); err != nil {
				log.Error("Failed to save annotated capture: %v", err)
			} else {
				reply.AnnotatedFilename = filepath.Base(path)
			}
		}
	}

	reply.CapturedImage = storage.DataURL(captured)
	return reply
}

func (d *Dispatcher) saveCapture(connectionID, payload string) StatusReply {
	log := d.logger.WithConnection(connectionID)

	img, err := storage.DecodeBase64Image(payload)
	if err != nil {
		log.Warning("Rejected capture: %v", err)
		return StatusReply{Status: "error", Error: err.Error()}
	}

	data, err := storage.EncodeJPEG(img, d.quality)
	if err != nil {
		return StatusReply{Status: "error", Error: err.Error()}
	}

	path, err := d.persist(connectionID, model.KindRaw, data)
	if err != nil {
		log.Error("Failed to save capture: %v", err)
		return StatusReply{Status: "error", Error: err.Error()}
	}
	return StatusReply{Status: "saved", Filename: filepath.Base(path)}
}

// persist writes the file and records it. A file that cannot be recorded is
// removed again so nothing untracked stays on disk.
func (d *Dispatcher) persist(connectionID string, kind model.ArtifactKind, data []byte) (string, error) {
	path, err := d.store.Save(connectionID, kind, data)
	if err != nil {
		return "", err
	}
	if _, err := d.sessions.RecordArtifact(connectionID, path, kind); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
