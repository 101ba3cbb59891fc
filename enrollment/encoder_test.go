package enrollment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/smartguardbackend/catalog"
	"github.com/camden-git/smartguardbackend/models"
)

type fakeIdentityRepo struct {
	identities     []models.Identity
	avatarPathsSet []string
}

func (f *fakeIdentityRepo) Create(identity *models.Identity) error { return nil }
func (f *fakeIdentityRepo) GetByID(id string) (*models.Identity, error) {
	for i := range f.identities {
		if f.identities[i].ID == id {
			return &f.identities[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeIdentityRepo) ListAll() ([]models.Identity, error)      { return f.identities, nil }
func (f *fakeIdentityRepo) ListStudents() ([]models.Identity, error) { return f.identities, nil }
func (f *fakeIdentityRepo) Delete(id string) error                   { return nil }
func (f *fakeIdentityRepo) SetAvatarPath(id string, avatarPath *string) error {
	f.avatarPathsSet = append(f.avatarPathsSet, id)
	return nil
}

func newTestEncoder(t *testing.T, datasetDir string, repo *fakeIdentityRepo) (*Encoder, *catalog.Catalog) {
	t.Helper()
	cat := catalog.New(filepath.Join(t.TempDir(), "encodings.bin"), 0.6)
	// empty model paths disable the networks; the scan and save paths still run
	enc := NewEncoder(datasetDir, t.TempDir(), 256, ModelPaths{}, cat, repo)
	return enc, cat
}

func TestEncoderRunReplacesCatalogWholesale(t *testing.T) {
	datasetDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(datasetDir, "1_Alice"), 0755))

	enc, cat := newTestEncoder(t, datasetDir, &fakeIdentityRepo{})
	require.NoError(t, cat.Save(
		[][]float32{{1, 2, 3}},
		[]catalog.Label{{IdentityID: "old", DisplayName: "Stale"}},
	))
	require.Equal(t, 1, cat.Size())

	// a re-scan with no encodable photos leaves nothing behind
	require.NoError(t, enc.Run())
	assert.Equal(t, 0, cat.Size())
}

func TestEncoderRunSkipsMalformedDirNames(t *testing.T) {
	datasetDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(datasetDir, "noseparator"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(datasetDir, "2_Bob"), 0755))

	enc, cat := newTestEncoder(t, datasetDir, &fakeIdentityRepo{})
	require.NoError(t, enc.Run())
	assert.Equal(t, 0, cat.Size())
}

func TestEncoderRunFailsOnMissingDataset(t *testing.T) {
	enc, _ := newTestEncoder(t, filepath.Join(t.TempDir(), "does-not-exist"), &fakeIdentityRepo{})
	assert.Error(t, enc.Run())
}

func TestEncoderSkipsAvatarWithoutPhotos(t *testing.T) {
	datasetDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(datasetDir, "3_Carol"), 0755))

	repo := &fakeIdentityRepo{identities: []models.Identity{
		{ID: "3", Name: "Carol", Role: models.RoleStudent},
	}}
	enc, _ := newTestEncoder(t, datasetDir, repo)

	require.NoError(t, enc.Run())
	assert.Empty(t, repo.avatarPathsSet)
}

func TestEncoderRunsAreIndependent(t *testing.T) {
	// every run builds its own detector and recognizer from the configured
	// paths, so back-to-back runs never share network state
	datasetDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(datasetDir, "1_Alice"), 0755))

	enc, cat := newTestEncoder(t, datasetDir, &fakeIdentityRepo{})
	require.NoError(t, enc.Run())
	require.NoError(t, enc.Run())
	assert.Equal(t, 0, cat.Size())
}
