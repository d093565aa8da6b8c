package session

import (
	context "context"
	reflect "reflect"

	peer "github.com/libp2p/go-libp2p/core/peer"
	afero "github.com/spf13/afero"
	gomock "go.uber.org/mock/gomock"

	blocklog "github.com/spacemeshos/go-publisher/blocklog"
	types "github.com/spacemeshos/go-publisher/common/types"
	dirdiff "github.com/spacemeshos/go-publisher/dirdiff"
	events "github.com/spacemeshos/go-publisher/events"
)

// MockOpener is a mock of Opener interface.
type MockOpener struct {
	ctrl     *gomock.Controller
	recorder *MockOpenerMockRecorder
	isgomock struct{}
}

// MockOpenerMockRecorder is the mock recorder for MockOpener.
type MockOpenerMockRecorder struct {
	mock *MockOpener
}

// NewMockOpener creates a new mock instance.
func NewMockOpener(ctrl *gomock.Controller) *MockOpener {
	mock := &MockOpener{ctrl: ctrl}
	mock.recorder = &MockOpenerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockOpener) EXPECT() *MockOpenerMockRecorder {
	return m.recorder
}

// Open mocks base method.
func (m *MockOpener) Open(ctx context.Context, seed types.Seed, name string) (Log, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Open", ctx, seed, name)
	ret0, _ := ret[0].(Log)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Open indicates an expected call of Open.
func (mr *MockOpenerMockRecorder) Open(ctx, seed, name any) *MockOpenerOpenCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Open", reflect.TypeOf((*MockOpener)(nil).Open), ctx, seed, name)
	return &MockOpenerOpenCall{Call: call}
}

// MockOpenerOpenCall wrap *gomock.Call.
type MockOpenerOpenCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockOpenerOpenCall) Return(arg0 Log, arg1 error) *MockOpenerOpenCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockOpenerOpenCall) Do(f func(context.Context, types.Seed, string) (Log, error)) *MockOpenerOpenCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockOpenerOpenCall) DoAndReturn(f func(context.Context, types.Seed, string) (Log, error)) *MockOpenerOpenCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Join mocks base method.
func (m *MockOpener) Join(ctx context.Context, key types.PublicKey, eager bool) (Log, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Join", ctx, key, eager)
	ret0, _ := ret[0].(Log)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Join indicates an expected call of Join.
func (mr *MockOpenerMockRecorder) Join(ctx, key, eager any) *MockOpenerJoinCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Join", reflect.TypeOf((*MockOpener)(nil).Join), ctx, key, eager)
	return &MockOpenerJoinCall{Call: call}
}

// MockOpenerJoinCall wrap *gomock.Call.
type MockOpenerJoinCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockOpenerJoinCall) Return(arg0 Log, arg1 error) *MockOpenerJoinCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockOpenerJoinCall) Do(f func(context.Context, types.PublicKey, bool) (Log, error)) *MockOpenerJoinCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockOpenerJoinCall) DoAndReturn(f func(context.Context, types.PublicKey, bool) (Log, error)) *MockOpenerJoinCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockLog is a mock of Log interface.
type MockLog struct {
	ctrl     *gomock.Controller
	recorder *MockLogMockRecorder
	isgomock struct{}
}

// MockLogMockRecorder is the mock recorder for MockLog.
type MockLogMockRecorder struct {
	mock *MockLog
}

// NewMockLog creates a new mock instance.
func NewMockLog(ctrl *gomock.Controller) *MockLog {
	mock := &MockLog{ctrl: ctrl}
	mock.recorder = &MockLogMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockLog) EXPECT() *MockLogMockRecorder {
	return m.recorder
}

// Key mocks base method.
func (m *MockLog) Key() types.PublicKey {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Key")
	ret0, _ := ret[0].(types.PublicKey)
	return ret0
}

// Key indicates an expected call of Key.
func (mr *MockLogMockRecorder) Key() *MockLogKeyCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Key", reflect.TypeOf((*MockLog)(nil).Key))
	return &MockLogKeyCall{Call: call}
}

// MockLogKeyCall wrap *gomock.Call.
type MockLogKeyCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogKeyCall) Return(arg0 types.PublicKey) *MockLogKeyCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogKeyCall) Do(f func() types.PublicKey) *MockLogKeyCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogKeyCall) DoAndReturn(f func() types.PublicKey) *MockLogKeyCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// DiscoveryKey mocks base method.
func (m *MockLog) DiscoveryKey() types.DiscoveryKey {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DiscoveryKey")
	ret0, _ := ret[0].(types.DiscoveryKey)
	return ret0
}

// DiscoveryKey indicates an expected call of DiscoveryKey.
func (mr *MockLogMockRecorder) DiscoveryKey() *MockLogDiscoveryKeyCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DiscoveryKey", reflect.TypeOf((*MockLog)(nil).DiscoveryKey))
	return &MockLogDiscoveryKeyCall{Call: call}
}

// MockLogDiscoveryKeyCall wrap *gomock.Call.
type MockLogDiscoveryKeyCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogDiscoveryKeyCall) Return(arg0 types.DiscoveryKey) *MockLogDiscoveryKeyCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogDiscoveryKeyCall) Do(f func() types.DiscoveryKey) *MockLogDiscoveryKeyCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogDiscoveryKeyCall) DoAndReturn(f func() types.DiscoveryKey) *MockLogDiscoveryKeyCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Length mocks base method.
func (m *MockLog) Length() uint64 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Length")
	ret0, _ := ret[0].(uint64)
	return ret0
}

// Length indicates an expected call of Length.
func (mr *MockLogMockRecorder) Length() *MockLogLengthCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Length", reflect.TypeOf((*MockLog)(nil).Length))
	return &MockLogLengthCall{Call: call}
}

// MockLogLengthCall wrap *gomock.Call.
type MockLogLengthCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogLengthCall) Return(arg0 uint64) *MockLogLengthCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogLengthCall) Do(f func() uint64) *MockLogLengthCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogLengthCall) DoAndReturn(f func() uint64) *MockLogLengthCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Append mocks base method.
func (m *MockLog) Append(ctx context.Context, values ...[]byte) (types.BlockIndex, error) {
	m.ctrl.T.Helper()
	varargs := []any{ctx}
	for _, a := range values {
		varargs = append(varargs, a)
	}
	ret := m.ctrl.Call(m, "Append", varargs...)
	ret0, _ := ret[0].(types.BlockIndex)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Append indicates an expected call of Append.
func (mr *MockLogMockRecorder) Append(ctx any, values ...any) *MockLogAppendCall {
	mr.mock.ctrl.T.Helper()
	varargs := append([]any{ctx}, values...)
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Append", reflect.TypeOf((*MockLog)(nil).Append), varargs...)
	return &MockLogAppendCall{Call: call}
}

// MockLogAppendCall wrap *gomock.Call.
type MockLogAppendCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogAppendCall) Return(arg0 types.BlockIndex, arg1 error) *MockLogAppendCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogAppendCall) Do(f func(context.Context, ...[]byte) (types.BlockIndex, error)) *MockLogAppendCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogAppendCall) DoAndReturn(f func(context.Context, ...[]byte) (types.BlockIndex, error)) *MockLogAppendCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Get mocks base method.
func (m *MockLog) Get(ctx context.Context, index types.BlockIndex) (*blocklog.Block, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, index)
	ret0, _ := ret[0].(*blocklog.Block)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Get indicates an expected call of Get.
func (mr *MockLogMockRecorder) Get(ctx, index any) *MockLogGetCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockLog)(nil).Get), ctx, index)
	return &MockLogGetCall{Call: call}
}

// MockLogGetCall wrap *gomock.Call.
type MockLogGetCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogGetCall) Return(arg0 *blocklog.Block, arg1 error) *MockLogGetCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogGetCall) Do(f func(context.Context, types.BlockIndex) (*blocklog.Block, error)) *MockLogGetCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogGetCall) DoAndReturn(f func(context.Context, types.BlockIndex) (*blocklog.Block, error)) *MockLogGetCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Head mocks base method.
func (m *MockLog) Head(ctx context.Context) (*blocklog.Block, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Head", ctx)
	ret0, _ := ret[0].(*blocklog.Block)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Head indicates an expected call of Head.
func (mr *MockLogMockRecorder) Head(ctx any) *MockLogHeadCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Head", reflect.TypeOf((*MockLog)(nil).Head), ctx)
	return &MockLogHeadCall{Call: call}
}

// MockLogHeadCall wrap *gomock.Call.
type MockLogHeadCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogHeadCall) Return(arg0 *blocklog.Block, arg1 error) *MockLogHeadCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogHeadCall) Do(f func(context.Context) (*blocklog.Block, error)) *MockLogHeadCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogHeadCall) DoAndReturn(f func(context.Context) (*blocklog.Block, error)) *MockLogHeadCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Update mocks base method.
func (m *MockLog) Update(ctx context.Context, opts blocklog.UpdateOptions) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, opts)
	ret0, _ := ret[0].(error)
	return ret0
}

// Update indicates an expected call of Update.
func (mr *MockLogMockRecorder) Update(ctx, opts any) *MockLogUpdateCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockLog)(nil).Update), ctx, opts)
	return &MockLogUpdateCall{Call: call}
}

// MockLogUpdateCall wrap *gomock.Call.
type MockLogUpdateCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogUpdateCall) Return(arg0 error) *MockLogUpdateCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogUpdateCall) Do(f func(context.Context, blocklog.UpdateOptions) error) *MockLogUpdateCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogUpdateCall) DoAndReturn(f func(context.Context, blocklog.UpdateOptions) error) *MockLogUpdateCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Peers mocks base method.
func (m *MockLog) Peers() []peer.ID {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Peers")
	ret0, _ := ret[0].([]peer.ID)
	return ret0
}

// Peers indicates an expected call of Peers.
func (mr *MockLogMockRecorder) Peers() *MockLogPeersCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Peers", reflect.TypeOf((*MockLog)(nil).Peers))
	return &MockLogPeersCall{Call: call}
}

// MockLogPeersCall wrap *gomock.Call.
type MockLogPeersCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogPeersCall) Return(arg0 []peer.ID) *MockLogPeersCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogPeersCall) Do(f func() []peer.ID) *MockLogPeersCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogPeersCall) DoAndReturn(f func() []peer.ID) *MockLogPeersCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// PeerConnects mocks base method.
func (m *MockLog) PeerConnects() *events.Feed[peer.ID] {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PeerConnects")
	ret0, _ := ret[0].(*events.Feed[peer.ID])
	return ret0
}

// PeerConnects indicates an expected call of PeerConnects.
func (mr *MockLogMockRecorder) PeerConnects() *MockLogPeerConnectsCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PeerConnects", reflect.TypeOf((*MockLog)(nil).PeerConnects))
	return &MockLogPeerConnectsCall{Call: call}
}

// MockLogPeerConnectsCall wrap *gomock.Call.
type MockLogPeerConnectsCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogPeerConnectsCall) Return(arg0 *events.Feed[peer.ID]) *MockLogPeerConnectsCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogPeerConnectsCall) Do(f func() *events.Feed[peer.ID]) *MockLogPeerConnectsCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogPeerConnectsCall) DoAndReturn(f func() *events.Feed[peer.ID]) *MockLogPeerConnectsCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Acks mocks base method.
func (m *MockLog) Acks() *events.Feed[types.AckEvent] {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Acks")
	ret0, _ := ret[0].(*events.Feed[types.AckEvent])
	return ret0
}

// Acks indicates an expected call of Acks.
func (mr *MockLogMockRecorder) Acks() *MockLogAcksCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Acks", reflect.TypeOf((*MockLog)(nil).Acks))
	return &MockLogAcksCall{Call: call}
}

// MockLogAcksCall wrap *gomock.Call.
type MockLogAcksCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogAcksCall) Return(arg0 *events.Feed[types.AckEvent]) *MockLogAcksCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogAcksCall) Do(f func() *events.Feed[types.AckEvent]) *MockLogAcksCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogAcksCall) DoAndReturn(f func() *events.Feed[types.AckEvent]) *MockLogAcksCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Close mocks base method.
func (m *MockLog) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockLogMockRecorder) Close() *MockLogCloseCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockLog)(nil).Close))
	return &MockLogCloseCall{Call: call}
}

// MockLogCloseCall wrap *gomock.Call.
type MockLogCloseCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockLogCloseCall) Return(arg0 error) *MockLogCloseCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockLogCloseCall) Do(f func() error) *MockLogCloseCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockLogCloseCall) DoAndReturn(f func() error) *MockLogCloseCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// MockDiffer is a mock of Differ interface.
type MockDiffer struct {
	ctrl     *gomock.Controller
	recorder *MockDifferMockRecorder
	isgomock struct{}
}

// MockDifferMockRecorder is the mock recorder for MockDiffer.
type MockDifferMockRecorder struct {
	mock *MockDiffer
}

// NewMockDiffer creates a new mock instance.
func NewMockDiffer(ctrl *gomock.Controller) *MockDiffer {
	mock := &MockDiffer{ctrl: ctrl}
	mock.recorder = &MockDifferMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDiffer) EXPECT() *MockDifferMockRecorder {
	return m.recorder
}

// Diff mocks base method.
func (m *MockDiffer) Diff(ctx context.Context, src afero.Fs, dst dirdiff.Dest, opts dirdiff.Options) ([]types.Change, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Diff", ctx, src, dst, opts)
	ret0, _ := ret[0].([]types.Change)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Diff indicates an expected call of Diff.
func (mr *MockDifferMockRecorder) Diff(ctx, src, dst, opts any) *MockDifferDiffCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Diff", reflect.TypeOf((*MockDiffer)(nil).Diff), ctx, src, dst, opts)
	return &MockDifferDiffCall{Call: call}
}

// MockDifferDiffCall wrap *gomock.Call.
type MockDifferDiffCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockDifferDiffCall) Return(arg0 []types.Change, arg1 error) *MockDifferDiffCall {
	c.Call = c.Call.Return(arg0, arg1)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockDifferDiffCall) Do(f func(context.Context, afero.Fs, dirdiff.Dest, dirdiff.Options) ([]types.Change, error)) *MockDifferDiffCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockDifferDiffCall) DoAndReturn(f func(context.Context, afero.Fs, dirdiff.Dest, dirdiff.Options) ([]types.Change, error)) *MockDifferDiffCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}

// Apply mocks base method.
func (m *MockDiffer) Apply(ctx context.Context, src afero.Fs, dst dirdiff.Dest, changes []types.Change, opts dirdiff.Options) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Apply", ctx, src, dst, changes, opts)
	ret0, _ := ret[0].(error)
	return ret0
}

// Apply indicates an expected call of Apply.
func (mr *MockDifferMockRecorder) Apply(ctx, src, dst, changes, opts any) *MockDifferApplyCall {
	mr.mock.ctrl.T.Helper()
	call := mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Apply", reflect.TypeOf((*MockDiffer)(nil).Apply), ctx, src, dst, changes, opts)
	return &MockDifferApplyCall{Call: call}
}

// MockDifferApplyCall wrap *gomock.Call.
type MockDifferApplyCall struct {
	*gomock.Call
}

// Return rewrite *gomock.Call.Return.
func (c *MockDifferApplyCall) Return(arg0 error) *MockDifferApplyCall {
	c.Call = c.Call.Return(arg0)
	return c
}

// Do rewrite *gomock.Call.Do.
func (c *MockDifferApplyCall) Do(f func(context.Context, afero.Fs, dirdiff.Dest, []types.Change, dirdiff.Options) error) *MockDifferApplyCall {
	c.Call = c.Call.Do(f)
	return c
}

// DoAndReturn rewrite *gomock.Call.DoAndReturn.
func (c *MockDifferApplyCall) DoAndReturn(f func(context.Context, afero.Fs, dirdiff.Dest, []types.Change, dirdiff.Options) error) *MockDifferApplyCall {
	c.Call = c.Call.DoAndReturn(f)
	return c
}
