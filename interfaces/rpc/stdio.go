package rpc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
)

// MaxFrameBytes bounds one line-delimited frame on the stdio transport.
const MaxFrameBytes = 10 * 1024 * 1024

// ServeStdio serves newline-delimited JSON-RPC frames until the reader is
// exhausted or the context is cancelled. Frames are handled sequentially,
// so responses leave in request order.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFrameBytes)

	frames := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			frame := make([]byte, len(line))
			copy(frame, line)
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	logging.Info().Add(logging.Component("rpc")).Msg("serving on stdio")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read frame: %w", err)
					}
				default:
				}
				return nil
			}
			resp := s.Handle(ctx, frame)
			if resp == nil {
				continue
			}
			if _, err := out.Write(append(resp, '\n')); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}
