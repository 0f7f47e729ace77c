// Package testutil 测试辅助：内存 SQLite、内存文件系统与种子数据.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/afero"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/vistoria/pkg/internal/model"
	"github.com/yeisme/vistoria/pkg/internal/storage/blob"
	"github.com/yeisme/vistoria/pkg/internal/storage/kv"
)

var dbSeq atomic.Int64

// NewDB 打开独立的内存 SQLite 并迁移全部模型；单连接保证事务串行.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}

	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// NewBlobs 内存产物存储.
func NewBlobs() *blob.Local {
	return blob.NewFS(afero.NewMemMapFs())
}

// NewKV 内存 KV 客户端.
func NewKV() *kv.Client {
	store, _ := kv.NewMemoryKV(context.Background(), nil)

	return kv.Wrap(store, "test:")
}

// Fixture 常用种子数据.
type Fixture struct {
	Obra      *model.Obra
	Autor     *model.Usuario
	Aprovador *model.Usuario
	Admin     *model.Usuario
}

// Seed 写入一个项目（编码 P001）、作者、全局审批人与管理员.
func Seed(t testing.TB, db *gorm.DB) *Fixture {
	t.Helper()

	f := &Fixture{
		Obra:      &model.Obra{Numero: "P001", Nome: "Edifício Aurora", NumeracaoInicial: 1},
		Autor:     &model.Usuario{Nome: "Ana Souza", Email: "a@x.com", Ativo: true},
		Aprovador: &model.Usuario{Nome: "Bruno Lima", Email: "b@x.com", AprovadorGlobal: true, Ativo: true},
		Admin:     &model.Usuario{Nome: "Carla Admin", Email: "admin@x.com", Role: "admin", Ativo: true},
	}

	for _, v := range []any{f.Obra, f.Autor, f.Aprovador, f.Admin} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	return f
}

// Report 直接写入一份指定状态的报告（绕过编号分配）.
func Report(t testing.TB, db *gorm.DB, f *Fixture, status model.Status) *model.Relatorio {
	t.Helper()

	var n int64
	db.Model(&model.Relatorio{}).Where("projeto_id = ?", f.Obra.ID).Count(&n)

	rel := &model.Relatorio{
		ProjetoID:     f.Obra.ID,
		NumeroProjeto: int(n) + 1,
		Numero:        model.FormatNumero(f.Obra.Numero, int(n)+1),
		Titulo:        "Visita técnica",
		AutorID:       f.Autor.ID,
		CriadoPor:     f.Autor.ID,
		Status:        status,
	}

	if err := db.Create(rel).Error; err != nil {
		t.Fatalf("seed report: %v", err)
	}

	return rel
}

// PNG 编码一个 8x8 的纯色 PNG；不同 seed 得到不同的字节与哈希.
func PNG(seed byte) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: seed, G: 0x80, B: 0x40, A: 0xff})
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)

	return buf.Bytes()
}
