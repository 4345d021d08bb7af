package memory

import (
	"context"
	"testing"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), []byte("first"), map[string]string{"event": "crawl.completed"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), []byte("second"), nil)
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Data) != "first" || msgs[0].Attrs["event"] != "crawl.completed" {
		t.Fatalf("first message not recorded correctly: %+v", msgs[0])
	}

	msgs[1].Attrs = map[string]string{"k": "v"}
	if pub.Messages()[1].Attrs != nil {
		t.Fatal("expected Messages() to return a copy")
	}
}
