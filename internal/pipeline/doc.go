// Package pipeline drives the transcoder: it pulls input paths from a
// discovery source, decodes each file record by record, and hands the
// built pulses to the output manager.
//
// The driver owns no domain logic. Decoding lives in gamic, packet
// assembly in transcode, and file lifecycle in output. Run bookkeeping
// (catalog, latest data info, metrics) is attached through the output
// indexers and the optional Metrics field.
package pipeline
