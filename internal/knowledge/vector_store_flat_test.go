package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aihub/rag-go/internal/errors"
)

func newTestStore(t *testing.T, dim int) (*FlatVectorStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenFlatStore(dir, dim)
	require.NoError(t, err)
	return store, dir
}

func vec(vals ...float32) []float32 { return vals }

func TestOpenFlatStore_FreshDirectory(t *testing.T) {
	store, _ := newTestStore(t, 4)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 4, store.Dimensions())
}

func TestOpenFlatStore_InvalidDimension(t *testing.T) {
	_, err := OpenFlatStore(t.TempDir(), 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfiguration))
}

func TestFlatStore_AddAndSearch_ExactMatch(t *testing.T) {
	store, _ := newTestStore(t, 3)

	vectors := [][]float32{
		vec(1, 0, 0),
		vec(0, 1, 0),
		vec(0, 0, 1),
	}
	metadatas := []MetadataRecord{
		{Text: "alpha", Source: "a.txt"},
		{Text: "beta", Source: "b.txt"},
		{Text: "gamma", Source: "c.txt"},
	}
	require.NoError(t, store.Add(vectors, metadatas))
	assert.Equal(t, 3, store.Len())

	// 查询向量等于已入库向量时，该条必须以距离0排在首位
	results, err := store.Search(vec(0, 1, 0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "beta", results[0].Metadata.Text)
	assert.Equal(t, 0.0, results[0].Distance)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
	assert.LessOrEqual(t, results[1].Distance, results[2].Distance)
}

func TestFlatStore_Add_LengthMismatch(t *testing.T) {
	store, _ := newTestStore(t, 2)

	err := store.Add(
		[][]float32{vec(1, 2), vec(3, 4)},
		[]MetadataRecord{{Text: "only one"}},
	)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLengthMismatch))
	// 不允许部分写入
	assert.Equal(t, 0, store.Len())
}

func TestFlatStore_Add_DimensionMismatch(t *testing.T) {
	store, _ := newTestStore(t, 3)

	err := store.Add(
		[][]float32{vec(1, 2)},
		[]MetadataRecord{{Text: "bad"}},
	)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))
	assert.Equal(t, 0, store.Len())
}

func TestFlatStore_Search_EmptyStore(t *testing.T) {
	store, _ := newTestStore(t, 2)

	results, err := store.Search(vec(1, 1), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFlatStore_Search_KLargerThanSize(t *testing.T) {
	store, _ := newTestStore(t, 2)
	require.NoError(t, store.Add(
		[][]float32{vec(1, 0), vec(0, 1)},
		[]MetadataRecord{{Text: "one"}, {Text: "two"}},
	))

	results, err := store.Search(vec(1, 0), 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFlatStore_Search_InvalidArgs(t *testing.T) {
	store, _ := newTestStore(t, 2)

	_, err := store.Search(vec(1, 2, 3), 1)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))

	_, err = store.Search(vec(1, 2), 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
}

func TestFlatStore_SaveLoadRoundTrip(t *testing.T) {
	store, dir := newTestStore(t, 3)

	vectors := [][]float32{
		vec(0.5, 1.5, -2),
		vec(3, -1, 0.25),
	}
	metadatas := []MetadataRecord{
		{Text: "第一段", Source: "doc.pdf"},
		{Text: "第二段", Source: "doc.pdf"},
	}
	require.NoError(t, store.Add(vectors, metadatas))

	query := vec(0.4, 1.4, -2)
	before, err := store.Search(query, 2)
	require.NoError(t, err)

	// 同一路径重新打开后结果必须一致
	reopened, err := OpenFlatStore(dir, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())

	after, err := reopened.Search(query, 2)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOpenFlatStore_MissingArtifact(t *testing.T) {
	store, dir := newTestStore(t, 2)
	require.NoError(t, store.Add(
		[][]float32{vec(1, 2)},
		[]MetadataRecord{{Text: "x"}},
	))

	// 只剩一半文件是损坏状态，必须拒绝启动而不是默默建空库
	require.NoError(t, os.Remove(filepath.Join(dir, metadataFileName)))
	_, err := OpenFlatStore(dir, 2)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCorruptStore))
}

func TestOpenFlatStore_CountMismatch(t *testing.T) {
	store, dir := newTestStore(t, 2)
	require.NoError(t, store.Add(
		[][]float32{vec(1, 2), vec(3, 4)},
		[]MetadataRecord{{Text: "x"}, {Text: "y"}},
	))

	// 篡改元数据文件使条数与索引不一致
	tampered, err := json.Marshal([]MetadataRecord{{Text: "x"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFileName), tampered, 0o644))

	_, err = OpenFlatStore(dir, 2)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCorruptStore))
}

func TestOpenFlatStore_DimensionChanged(t *testing.T) {
	store, dir := newTestStore(t, 2)
	require.NoError(t, store.Add(
		[][]float32{vec(1, 2)},
		[]MetadataRecord{{Text: "x"}},
	))

	_, err := OpenFlatStore(dir, 3)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeCorruptStore))
}

func TestFlatStore_ConcurrentAdds(t *testing.T) {
	store, _ := newTestStore(t, 2)

	addBatch := func(prefix string, n int) {
		vectors := make([][]float32, n)
		metadatas := make([]MetadataRecord, n)
		for i := 0; i < n; i++ {
			vectors[i] = vec(float32(i), float32(i))
			metadatas[i] = MetadataRecord{
				Text:   fmt.Sprintf("%s-%d", prefix, i),
				Source: prefix,
			}
		}
		assert.NoError(t, store.Add(vectors, metadatas))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		addBatch("first", 10)
	}()
	go func() {
		defer wg.Done()
		addBatch("second", 5)
	}()
	wg.Wait()

	assert.Equal(t, 15, store.Len())

	// 每条元数据仍与原向量配对：按向量值反查文本后缀
	for i := 0; i < 10; i++ {
		results, err := store.Search(vec(float32(i), float32(i)), 15)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, 0.0, results[0].Distance)
		assert.True(t, strings.HasSuffix(results[0].Metadata.Text, fmt.Sprintf("-%d", i)))
	}
}
