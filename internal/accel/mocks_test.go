package accel

import (
	"github.com/stretchr/testify/mock"
)

type fakeDevice struct {
	info DeviceInfo
}

func (d *fakeDevice) Info() DeviceInfo { return d.info }

type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Name() string { return "mock" }

func (m *mockRuntime) Devices() ([]Device, error) {
	args := m.Called()
	devices, _ := args.Get(0).([]Device)
	return devices, args.Error(1)
}

func (m *mockRuntime) CreateContext(device Device) (Context, error) {
	args := m.Called(device)
	ctx, _ := args.Get(0).(Context)
	return ctx, args.Error(1)
}

type mockContext struct {
	mock.Mock
}

func (m *mockContext) CreateQueue(device Device) (Queue, error) {
	args := m.Called(device)
	q, _ := args.Get(0).(Queue)
	return q, args.Error(1)
}

func (m *mockContext) BuildProgram(source string) (Program, error) {
	args := m.Called(source)
	p, _ := args.Get(0).(Program)
	return p, args.Error(1)
}

func (m *mockContext) CreateBuffer(flags MemFlags, size int) (Buffer, error) {
	args := m.Called(flags, size)
	b, _ := args.Get(0).(Buffer)
	return b, args.Error(1)
}

func (m *mockContext) Release() { m.Called() }

type mockProgram struct {
	mock.Mock
}

func (m *mockProgram) CreateKernel(name string) (Kernel, error) {
	args := m.Called(name)
	k, _ := args.Get(0).(Kernel)
	return k, args.Error(1)
}

func (m *mockProgram) Release() { m.Called() }

type mockKernel struct {
	mock.Mock
	name    string
	numArgs int
}

func (m *mockKernel) Name() string { return m.name }
func (m *mockKernel) NumArgs() int { return m.numArgs }

func (m *mockKernel) SetArgBuffer(index int, buf Buffer) error {
	return m.Called(index, buf).Error(0)
}

func (m *mockKernel) SetArgInt32(index int, value int32) error {
	return m.Called(index, value).Error(0)
}

func (m *mockKernel) SetArgFloat32(index int, value float32) error {
	return m.Called(index, value).Error(0)
}

func (m *mockKernel) Release() { m.Called() }

type mockBuffer struct {
	mock.Mock
	id    int
	size  int
	flags MemFlags
}

func (m *mockBuffer) Size() int       { return m.size }
func (m *mockBuffer) Flags() MemFlags { return m.flags }
func (m *mockBuffer) Release()        { m.Called() }

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) WriteBuffer(buf Buffer, data []float32) error {
	return m.Called(buf, data).Error(0)
}

func (m *mockQueue) ReadBuffer(buf Buffer, dst []float32) error {
	return m.Called(buf, dst).Error(0)
}

func (m *mockQueue) Launch(kernel Kernel, global []int) error {
	return m.Called(kernel, global).Error(0)
}

func (m *mockQueue) Finish() error {
	return m.Called().Error(0)
}

func (m *mockQueue) Release() { m.Called() }
