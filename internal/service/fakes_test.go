package service

import (
	"context"
	"sync"

	"dermascan-be/internal/entity"
	"dermascan-be/internal/repository/contract"
	"dermascan-be/internal/repository/specification"
	"dermascan-be/internal/repository/unitofwork"
	"dermascan-be/pkg/llm"
)

type fakeProvider struct {
	reply   string
	chunks  []string
	err     error
	history []llm.Message
	opts    *llm.Options
}

func (p *fakeProvider) Chat(_ context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.history = history
	p.opts = llm.ApplyOptions(llm.Options{}, options...)
	return p.reply, p.err
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (p *fakeProvider) ChatStream(_ context.Context, history []llm.Message, _ ...llm.Option) (llm.Stream, error) {
	p.history = history
	if p.err != nil {
		return nil, p.err
	}
	return &sliceStream{chunks: p.chunks, pos: -1}, nil
}

type sliceStream struct {
	chunks []string
	pos    int
	closed bool
}

func (s *sliceStream) Next() bool {
	if s.pos+1 >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Text() string { return s.chunks[s.pos] }
func (s *sliceStream) Err() error   { return nil }
func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.err
}

// fakeAnalysisRepo ignores specifications and answers from its fields.
type fakeAnalysisRepo struct {
	created   []*entity.SkinAnalysis
	createErr error
	found     *entity.SkinAnalysis
	all       []*entity.SkinAnalysis
	specs     []specification.Specification
}

func (r *fakeAnalysisRepo) Create(_ context.Context, a *entity.SkinAnalysis) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, a)
	return nil
}

func (r *fakeAnalysisRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.SkinAnalysis, error) {
	r.specs = specs
	return r.found, nil
}

func (r *fakeAnalysisRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.SkinAnalysis, error) {
	r.specs = specs
	return r.all, nil
}

func (r *fakeAnalysisRepo) Count(_ context.Context, _ ...specification.Specification) (int64, error) {
	return int64(len(r.all)), nil
}

type fakeUnitOfWork struct {
	repo *fakeAnalysisRepo
}

func (u *fakeUnitOfWork) Begin(context.Context) error { return nil }
func (u *fakeUnitOfWork) Commit() error               { return nil }
func (u *fakeUnitOfWork) Rollback() error             { return nil }

func (u *fakeUnitOfWork) SkinAnalysisRepository() contract.SkinAnalysisRepository {
	return u.repo
}

type fakeFactory struct {
	repo *fakeAnalysisRepo
}

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{repo: f.repo}
}
