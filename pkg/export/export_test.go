package export

import (
	"context"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/isorender/pkg/preload"
	"github.com/vango-dev/isorender/pkg/router"
	"github.com/vango-dev/isorender/pkg/server"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func text(s string) router.Component {
	return router.ComponentFunc(func(*router.RenderContext, template.HTML) (template.HTML, error) {
		return template.HTML(s), nil
	})
}

func newTestServer() *server.Server {
	r := router.New()
	r.Page("/", text("home page"))
	r.Page("/about", text("about page"))
	r.Page("/users/:id", text("user"))
	r.Page("/broken", text("never"), router.WithLoader(preload.Loader(func(context.Context, *preload.Context) error {
		return errors.New("api down")
	})))
	r.Redirect("/old", "/about")
	return server.New(nil, r, server.WithLogger(quiet))
}

func TestKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "index.html"},
		{"/about", "about/index.html"},
		{"/about/", "about/index.html"},
		{"/a/b?x=1#top", "a/b/index.html"},
		{"/a//b", "a/b/index.html"},
	}
	for _, tt := range tests {
		got, err := Key(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("Key(%q) = %q, %v, want %q", tt.path, got, err, tt.want)
		}
	}

	for _, bad := range []string{"about", "https://example.com/", "//evil"} {
		if _, err := Key(bad); err == nil {
			t.Errorf("Key(%q) should fail", bad)
		}
	}
}

func TestExportToDir(t *testing.T) {
	dir := t.TempDir()
	e := New(newTestServer(), DirSink{Root: dir}, WithLogger(quiet), WithConcurrency(2))

	report, err := e.Export(context.Background(), []string{"/", "/about", "/old", "/broken", "/about"})
	if err == nil || !strings.Contains(err.Error(), "/broken") {
		t.Fatalf("Export() error = %v, want /broken failure", err)
	}

	if len(report.Pages) != 4 {
		t.Fatalf("len(Pages) = %d, want 4", len(report.Pages))
	}
	if failed := report.Failed(); len(failed) != 1 || failed[0].Path != "/broken" {
		t.Errorf("Failed() = %+v", failed)
	}

	read := func(name string) string {
		t.Helper()
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("ReadFile(%s) error: %v", name, err)
		}
		return string(b)
	}

	if got := read("index.html"); !strings.Contains(got, "home page") || !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Errorf("index.html = %s", got)
	}
	if got := read("about/index.html"); !strings.Contains(got, "about page") {
		t.Errorf("about/index.html = %s", got)
	}
	if got := read("old/index.html"); !strings.Contains(got, `url=/about`) {
		t.Errorf("old/index.html = %s", got)
	}
	if got := read(DefaultBasePageKey); !strings.Contains(got, `<div id="root"></div>`) {
		t.Errorf("base page = %s", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken")); !os.IsNotExist(err) {
		t.Error("failed page should not be written")
	}

	for _, p := range report.Pages {
		if p.Path == "/old" && (p.Status != 302 || p.Redirect != "/about") {
			t.Errorf("redirect page = %+v", p)
		}
	}
}

type failingSink struct{}

func (failingSink) Put(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}

func TestExportStopsOnSinkError(t *testing.T) {
	e := New(newTestServer(), failingSink{}, WithLogger(quiet), WithBasePageKey(""))
	_, err := e.Export(context.Background(), []string{"/"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Export() error = %v", err)
	}
}

func TestStaticPaths(t *testing.T) {
	got := StaticPaths(newTestServer().Router())
	want := []string{"/", "/about", "/broken"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StaticPaths() = %v, want %v", got, want)
	}
}

func TestDirSinkRejectsEscapes(t *testing.T) {
	d := DirSink{Root: t.TempDir()}
	for _, key := range []string{"", "/etc/passwd", "../outside.html", "a/../../outside.html"} {
		if err := d.Put(context.Background(), key, nil, ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	inputs  []*s3.PutObjectInput
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	f.inputs = append(f.inputs, in)
	return &s3.PutObjectOutput{}, nil
}

func TestExportToS3(t *testing.T) {
	fake := &fakeS3{}
	sink := NewS3Sink(fake, "site", "/v1", WithCacheControl("no-cache"))
	e := New(newTestServer(), sink, WithLogger(quiet))

	if _, err := e.Export(context.Background(), []string{"/", "/about"}); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	for _, key := range []string{"site/v1/index.html", "site/v1/about/index.html", "site/v1/" + DefaultBasePageKey} {
		if _, ok := fake.objects[key]; !ok {
			t.Errorf("object %s missing; have %v", key, fake.objects)
		}
	}
	for _, in := range fake.inputs {
		if aws.ToString(in.ContentType) != htmlContentType || aws.ToString(in.CacheControl) != "no-cache" {
			t.Errorf("headers = %s, %s", aws.ToString(in.ContentType), aws.ToString(in.CacheControl))
		}
	}
}

func TestS3SinkError(t *testing.T) {
	sink := NewS3Sink(&fakeS3{err: errors.New("access denied")}, "site", "")
	err := sink.Put(context.Background(), "index.html", []byte("x"), htmlContentType)
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("Put() error = %v", err)
	}
}

func TestNewS3Client(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_REGION", "")

	if _, err := NewS3Client(S3Config{}); err == nil {
		t.Error("missing region should fail")
	}
	if _, err := NewS3Client(S3Config{Region: "eu-west-1"}); err == nil {
		t.Error("missing credentials should fail")
	}

	c, err := NewS3Client(S3Config{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	if err != nil {
		t.Fatalf("NewS3Client() error: %v", err)
	}
	if o := c.Options(); !o.UsePathStyle || aws.ToString(o.BaseEndpoint) != "http://localhost:9000" {
		t.Errorf("options = %+v", o)
	}
}
