package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	ranges  []string
	putKey  string
	putBody []byte
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	if r := aws.ToString(in.Range); r != "" {
		f.ranges = append(f.ranges, r)
		var start, end int
		if _, err := fmt.Sscanf(r, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		data = data[start : end+1]
	}
	cl := int64(len(data))
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), ContentLength: &cl}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	data, ok := f.objects[k]
	if !ok {
		return nil, errors.New("NotFound")
	}
	cl := int64(len(data))
	return &s3.HeadObjectOutput{ContentLength: &cl, ContentType: aws.String(f.types[k])}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putKey = aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	if in.Body != nil {
		f.putBody, _ = io.ReadAll(in.Body)
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func withFakeS3(t *testing.T, f *fakeS3) {
	old := newS3
	newS3 = func(ctx context.Context) (*S3Client, error) { return &S3Client{client: f}, nil }
	t.Cleanup(func() { newS3 = old })
}

func TestOpenFileBlob(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(p, []byte("hello world\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := OpenBlob(context.Background(), "file://"+p)
	if err != nil {
		t.Fatalf("OpenBlob err: %v", err)
	}
	defer b.Close()
	if b.Size() != 12 || b.Name() != "notes.txt" {
		t.Fatalf("size=%d name=%q", b.Size(), b.Name())
	}
	if !strings.HasPrefix(b.ContentType(), "text/plain") {
		t.Fatalf("content type %q", b.ContentType())
	}
	buf := make([]byte, 5)
	if _, err := b.ReadAt(buf, 6); err != nil || string(buf) != "world" {
		t.Fatalf("ReadAt = %q, %v", buf, err)
	}
}

func TestOpenFileSniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "scan.unknownext")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if err := os.WriteFile(p, png, 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := OpenFile(p)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.ContentType() != "image/png" {
		t.Fatalf("content type %q", b.ContentType())
	}
}

func TestOpenFileRejectsDirectory(t *testing.T) {
	if _, err := OpenFile(t.TempDir()); err == nil {
		t.Fatalf("expected error for directory")
	}
}

func TestS3BlobRangedReads(t *testing.T) {
	f := &fakeS3{
		objects: map[string][]byte{"models/site/plant.ifc": []byte("0123456789")},
		types:   map[string]string{"models/site/plant.ifc": "application/x-step"},
	}
	withFakeS3(t, f)
	b, err := OpenBlob(context.Background(), "s3://models/site/plant.ifc")
	if err != nil {
		t.Fatalf("OpenBlob err: %v", err)
	}
	if b.Size() != 10 || b.Name() != "plant.ifc" || b.ContentType() != "application/x-step" {
		t.Fatalf("size=%d name=%q type=%q", b.Size(), b.Name(), b.ContentType())
	}

	buf := make([]byte, 4)
	n, err := b.ReadAt(buf, 2)
	if err != nil || n != 4 || string(buf) != "2345" {
		t.Fatalf("ReadAt = %d %q %v", n, buf, err)
	}
	// a read past the end is short and reports EOF
	n, err = b.ReadAt(buf, 8)
	if err != io.EOF || n != 2 || string(buf[:n]) != "89" {
		t.Fatalf("tail ReadAt = %d %q %v", n, buf[:n], err)
	}
	if _, err := b.ReadAt(buf, 10); err != io.EOF {
		t.Fatalf("ReadAt at size err=%v", err)
	}
	want := []string{"bytes=2-5", "bytes=8-9"}
	if fmt.Sprint(f.ranges) != fmt.Sprint(want) {
		t.Fatalf("ranges %v want %v", f.ranges, want)
	}

	// section reads through the blob reassemble the object
	all, err := io.ReadAll(io.NewSectionReader(b, 0, b.Size()))
	if err != nil || string(all) != "0123456789" {
		t.Fatalf("section read %q %v", all, err)
	}
}

func TestS3BlobMissingObject(t *testing.T) {
	withFakeS3(t, &fakeS3{objects: map[string][]byte{}})
	if _, err := OpenBlob(context.Background(), "s3://bucket/missing"); err == nil {
		t.Fatalf("expected error for missing object")
	}
	if _, err := OpenBlob(context.Background(), "s3://bucket"); err == nil {
		t.Fatalf("expected error for uri without key")
	}
}

func TestS3Put(t *testing.T) {
	f := &fakeS3{}
	cl := &S3Client{client: f}
	uri, err := cl.Put(context.Background(), "s3://exports/scene/objects.ndjson", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Put err: %v", err)
	}
	if uri != "s3://exports/scene/objects.ndjson" || f.putKey != "exports/scene/objects.ndjson" {
		t.Fatalf("uri=%q key=%q", uri, f.putKey)
	}
	if string(f.putBody) != "payload" {
		t.Fatalf("body %q", f.putBody)
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("s3://b/k") || IsRemote("file:///tmp/x") || IsRemote("/tmp/x") {
		t.Fatalf("IsRemote misclassified")
	}
}
