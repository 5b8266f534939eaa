//go:build js && wasm

package main

import (
	"encoding/json"
	"log/slog"
	"syscall/js"

	"github.com/inamate/geoconstruct/internal/document"
	"github.com/inamate/geoconstruct/internal/engine"
	"github.com/inamate/geoconstruct/internal/geom"
)

var eng *engine.Engine

func main() {
	log := slog.New(slog.NewTextHandler(consoleWriter{}, &slog.HandlerOptions{Level: slog.LevelInfo}))
	eng = engine.New(engine.WithLogger(log))

	// Create the engine API object
	geoEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	geoEngine.Set("loadDocument", js.FuncOf(loadDocument))
	geoEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	geoEngine.Set("setSelection", js.FuncOf(setSelection))
	geoEngine.Set("setViewport", js.FuncOf(setViewport))
	geoEngine.Set("panViewport", js.FuncOf(panViewport))
	geoEngine.Set("zoomViewport", js.FuncOf(zoomViewport))
	geoEngine.Set("addPoint", js.FuncOf(addPoint))
	geoEngine.Set("beginConstruction", js.FuncOf(beginConstruction))
	geoEngine.Set("pick", js.FuncOf(pick))
	geoEngine.Set("cancelConstruction", js.FuncOf(cancelConstruction))
	geoEngine.Set("beginDrag", js.FuncOf(beginDrag))
	geoEngine.Set("dragTo", js.FuncOf(dragTo))
	geoEngine.Set("endDrag", js.FuncOf(endDrag))
	geoEngine.Set("cancelDrag", js.FuncOf(cancelDrag))
	geoEngine.Set("deleteObjects", js.FuncOf(deleteObjects))
	geoEngine.Set("collectOrphans", js.FuncOf(collectOrphans))

	// --- Queries (frontend ← engine) ---
	geoEngine.Set("render", js.FuncOf(render))
	geoEngine.Set("hitTest", js.FuncOf(hitTest))
	geoEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	geoEngine.Set("getDocument", js.FuncOf(getDocument))
	geoEngine.Set("getSelection", js.FuncOf(getSelection))
	geoEngine.Set("getSnapIndicator", js.FuncOf(getSnapIndicator))
	geoEngine.Set("getConstruction", js.FuncOf(getConstruction))
	geoEngine.Set("validate", js.FuncOf(validate))

	// Register on global scope
	js.Global().Set("geoEngine", geoEngine)

	// Signal that WASM is ready
	js.Global().Set("geoWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// consoleWriter sends log lines to the browser console.
type consoleWriter struct{}

func (consoleWriter) Write(p []byte) (int, error) {
	js.Global().Get("console").Call("log", string(p))
	return len(p), nil
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func failMsg(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func toJSON(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}

// screenArg reads a screen position from args[i], args[i+1] and maps it
// into the world.
func screenArg(args []js.Value, i int) (geom.Vec, bool) {
	if len(args) < i+2 {
		return geom.Vec{}, false
	}
	return eng.ScreenToWorld(geom.V(args[i].Float(), args[i+1].Float())), true
}

func refArg(args []js.Value, i int) (document.Ref, bool) {
	if len(args) < i+2 {
		return document.Ref{}, false
	}
	return document.Ref{Kind: document.RefKind(args[i].String()), ID: args[i+1].String()}, true
}

func styleArg(args []js.Value, i int) document.Style {
	var style document.Style
	if len(args) > i && args[i].Type() == js.TypeString {
		if err := json.Unmarshal([]byte(args[i].String()), &style); err != nil {
			slog.Warn("ignoring malformed style", "error", err)
		}
	}
	return style
}

func refsArg(args []js.Value, i int) ([]document.Ref, error) {
	if len(args) <= i || args[i].Type() != js.TypeString {
		return nil, nil
	}
	var refs []document.Ref
	err := json.Unmarshal([]byte(args[i].String()), &refs)
	return refs, err
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("missing document JSON")
	}
	if err := eng.LoadDocumentJSON(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func loadSampleDocument(this js.Value, args []js.Value) interface{} {
	eng.LoadSampleDocument()
	return ok()
}

func setSelection(this js.Value, args []js.Value) interface{} {
	refs, err := refsArg(args, 0)
	if err != nil {
		return fail(err)
	}
	eng.SetSelection(refs)
	return ok()
}

// setViewport(width, height, centerX, centerY, zoom)
func setViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 5 {
		return failMsg("expected width, height, centerX, centerY, zoom")
	}
	eng.SetViewport(engine.Viewport{
		Width:  args[0].Float(),
		Height: args[1].Float(),
		Center: geom.V(args[2].Float(), args[3].Float()),
		Zoom:   args[4].Float(),
	})
	return ok()
}

func panViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("expected dx, dy")
	}
	eng.SetViewport(eng.Viewport().Pan(args[0].Float(), args[1].Float()))
	return ok()
}

// zoomViewport(screenX, screenY, factor) zooms about a canvas position.
func zoomViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return failMsg("expected screenX, screenY, factor")
	}
	anchor := geom.V(args[0].Float(), args[1].Float())
	eng.SetViewport(eng.Viewport().ZoomAt(anchor, args[2].Float()))
	return ok()
}

// addPoint(screenX, screenY, [kind, id], [styleJSON]) places a free point,
// or a point on the object named by kind and id.
func addPoint(this js.Value, args []js.Value) interface{} {
	pos, found := screenArg(args, 0)
	if !found {
		return failMsg("expected screenX, screenY")
	}
	if ref, found := refArg(args, 2); found && ref.ID != "" {
		id, err := eng.AddPointOn(ref, pos, styleArg(args, 4))
		if err != nil {
			return fail(err)
		}
		return js.ValueOf(id)
	}
	id, err := eng.AddPoint(pos, styleArg(args, 2))
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(id)
}

func beginConstruction(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("missing tool")
	}
	if err := eng.BeginConstruction(engine.Tool(args[0].String()), styleArg(args, 1)); err != nil {
		return fail(err)
	}
	return ok()
}

func pick(this js.Value, args []js.Value) interface{} {
	ref, found := refArg(args, 0)
	if !found {
		return failMsg("expected kind, id")
	}
	res, err := eng.Pick(ref)
	if err != nil {
		return fail(err)
	}
	return toJSON(res)
}

func cancelConstruction(this js.Value, args []js.Value) interface{} {
	eng.CancelConstruction()
	return ok()
}

// beginDrag(kind, id, screenX, screenY)
func beginDrag(this js.Value, args []js.Value) interface{} {
	ref, found := refArg(args, 0)
	if !found {
		return failMsg("expected kind, id")
	}
	pos, found := screenArg(args, 2)
	if !found {
		return failMsg("expected screenX, screenY")
	}
	if err := eng.BeginDrag(ref, pos); err != nil {
		return fail(err)
	}
	return ok()
}

func dragTo(this js.Value, args []js.Value) interface{} {
	pos, found := screenArg(args, 0)
	if !found {
		return failMsg("expected screenX, screenY")
	}
	if err := eng.DragTo(pos); err != nil {
		return fail(err)
	}
	return ok()
}

func endDrag(this js.Value, args []js.Value) interface{} {
	if err := eng.EndDrag(); err != nil {
		return fail(err)
	}
	return ok()
}

func cancelDrag(this js.Value, args []js.Value) interface{} {
	if err := eng.CancelDrag(); err != nil {
		return fail(err)
	}
	return ok()
}

func deleteObjects(this js.Value, args []js.Value) interface{} {
	refs, err := refsArg(args, 0)
	if err != nil {
		return fail(err)
	}
	if len(refs) == 0 {
		refs = eng.Selection()
	}
	report, err := eng.Delete(refs...)
	if err != nil {
		return fail(err)
	}
	return toJSON(report)
}

func collectOrphans(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.CollectOrphans())
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
}

// hitTest(screenX, screenY) returns the ref under the cursor as JSON, or
// an empty string.
func hitTest(this js.Value, args []js.Value) interface{} {
	pos, found := screenArg(args, 0)
	if !found {
		return js.ValueOf("")
	}
	ref := eng.HitTest(pos)
	if ref.IsZero() {
		return js.ValueOf("")
	}
	return toJSON(ref)
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.SelectionBounds())
}

func getDocument(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.DocumentJSON())
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.Selection())
}

func getSnapIndicator(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.SnapIndicator())
}

func getConstruction(this js.Value, args []js.Value) interface{} {
	return toJSON(map[string]interface{}{
		"tool":  eng.ActiveTool(),
		"picks": eng.PendingPicks(),
	})
}

func validate(this js.Value, args []js.Value) interface{} {
	findings := engine.Validate(eng.Scene())
	out := make([]map[string]interface{}, len(findings))
	for i, f := range findings {
		out[i] = map[string]interface{}{
			"ref":      f.Ref,
			"message":  f.Message,
			"severity": f.Severity.String(),
		}
	}
	return toJSON(out)
}
