package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

const DefaultCollection = "carts"

// Firestore keeps one document per user: <collection>/<userID> with the
// fields items and updatedAt. Other fields on the document are left alone.
type Firestore struct {
	client     *firestore.Client
	collection string
}

func NewFirestore(client *firestore.Client, collection string) *Firestore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Firestore{client: client, collection: collection}
}

// NewFirestoreClient uses Application Default Credentials when
// credentialsFile is empty.
func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

func (f *Firestore) doc(userID string) (*firestore.DocumentRef, error) {
	if f == nil || f.client == nil {
		return nil, errors.New("firestore client is nil")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("user id is empty")
	}
	return f.client.Collection(f.collection).Doc(uid), nil
}

func (f *Firestore) Get(ctx context.Context, userID string) (*cart.RemoteSnapshot, error) {
	ref, err := f.doc(userID)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart document: %w", err)
	}
	return snapshotFromData(snap.Data(), snap.UpdateTime)
}

func (f *Firestore) Put(ctx context.Context, userID string, items []cart.Item) error {
	ref, err := f.doc(userID)
	if err != nil {
		return err
	}
	data := map[string]any{
		"items":     itemsToData(items),
		"updatedAt": firestore.ServerTimestamp,
	}
	if _, err := ref.Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("set cart document: %w", err)
	}
	return nil
}

func itemsToData(items []cart.Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		m := map[string]any{
			"id":    it.ID,
			"name":  it.Name,
			"price": it.Price,
			"qty":   it.Quantity,
		}
		if it.Image != "" {
			m["image"] = it.Image
		}
		out = append(out, m)
	}
	return out
}

// snapshotFromData parses a document tolerantly. A document without an items
// array is malformed; individual entries that cannot be read are skipped.
func snapshotFromData(raw map[string]any, fallback time.Time) (*cart.RemoteSnapshot, error) {
	itemsAny, ok := raw["items"]
	if !ok || itemsAny == nil {
		return nil, cart.ErrMalformedSnapshot
	}
	list, ok := itemsAny.([]any)
	if !ok {
		return nil, cart.ErrMalformedSnapshot
	}

	snap := &cart.RemoteSnapshot{Items: make([]cart.Item, 0, len(list)), UpdatedAt: fallback}
	if t, ok := raw["updatedAt"].(time.Time); ok {
		snap.UpdatedAt = t
	}

	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		it := cart.Item{
			ID:       strings.TrimSpace(asString(m["id"])),
			Name:     asString(m["name"]),
			Price:    asFloat(m["price"]),
			Quantity: int(asFloat(m["qty"])),
			Image:    asString(m["image"]),
		}
		if it.ID == "" || it.Quantity <= 0 {
			continue
		}
		snap.Items = append(snap.Items, it)
	}
	return snap, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
