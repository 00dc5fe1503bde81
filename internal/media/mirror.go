package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// uploadToMirror pushes one payload to the mirror store, wrapping it with
// the encryptor when one is configured. Encrypted objects carry a ".age"
// key suffix so a mirror can hold a mix of plain and encrypted entries.
// Encryption buffers the ciphertext to learn its length before upload;
// archive payloads are single photos, small enough for that.
func uploadToMirror(ctx context.Context, mirror Mirror, enc Encryptor, key string, r io.Reader, size int64) error {
	if enc == nil {
		return mirror.Put(ctx, key, r, size)
	}

	var buf bytes.Buffer
	wc, err := enc.Encrypt(&buf)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(wc, r); err != nil {
		return fmt.Errorf("encrypting payload: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return mirror.Put(ctx, key+".age", bytes.NewReader(buf.Bytes()), int64(buf.Len()))
}

// FetchFromMirror retrieves one archived payload by archive-relative key,
// trying the encrypted form first when an encryptor is configured.
func FetchFromMirror(ctx context.Context, mirror Mirror, enc Encryptor, key string, w io.Writer) error {
	if mirror == nil {
		return fmt.Errorf("no mirror configured")
	}
	if enc != nil {
		ok, err := mirror.Exists(ctx, key+".age")
		if err != nil {
			return fmt.Errorf("checking mirror: %w", err)
		}
		if ok {
			var buf bytes.Buffer
			if err := mirror.Get(ctx, key+".age", &buf); err != nil {
				return fmt.Errorf("fetching from mirror: %w", err)
			}
			pr, err := enc.Decrypt(&buf)
			if err != nil {
				return fmt.Errorf("decrypting payload: %w", err)
			}
			if _, err := io.Copy(w, pr); err != nil {
				return fmt.Errorf("writing payload: %w", err)
			}
			return nil
		}
	}
	return mirror.Get(ctx, key, w)
}
