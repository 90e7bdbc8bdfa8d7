package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/clinirepas/api/internal/enum"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, role string) *Client {
	return &Client{
		hub:  hub,
		role: role,
		send: make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, enum.UserRoleKitchen)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[enum.UserRoleKitchen] == nil {
		t.Fatal("role room not created")
	}
	if !hub.rooms[enum.UserRoleKitchen][client] {
		t.Fatal("client not registered in role room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, enum.UserRoleKitchen)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[enum.UserRoleKitchen] != nil {
		t.Fatal("role room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleRole(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	kitchen := mockClient(hub, enum.UserRoleKitchen)
	delivery := mockClient(hub, enum.UserRoleDelivery)

	// Register both clients
	hub.register <- kitchen
	hub.register <- delivery
	time.Sleep(10 * time.Millisecond)

	// Broadcast to the kitchen room only
	testPayload := json.RawMessage(`{"order_id":"test-123"}`)
	event := Event{
		Type:    "patient_order.created",
		Payload: testPayload,
	}
	hub.BroadcastToRoles([]string{enum.UserRoleKitchen}, event)

	// Check kitchen receives the message
	select {
	case msg := <-kitchen.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "patient_order.created" {
			t.Errorf("expected type 'patient_order.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("kitchen client did not receive message")
	}

	// Check delivery does NOT receive the message
	select {
	case <-delivery.send:
		t.Fatal("delivery client should not have received a kitchen event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleRoles(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	kitchen := mockClient(hub, enum.UserRoleKitchen)
	admin := mockClient(hub, enum.UserRoleAdmin)
	nurse := mockClient(hub, enum.UserRoleNurse)

	hub.register <- kitchen
	hub.register <- admin
	hub.register <- nurse
	time.Sleep(10 * time.Millisecond)

	event := Event{
		Type:    "employee_order.updated",
		Payload: json.RawMessage(`{"status":"READY_FOR_DELIVERY"}`),
	}
	hub.BroadcastToRoles([]string{enum.UserRoleKitchen, enum.UserRoleAdmin}, event)

	for name, client := range map[string]*Client{"kitchen": kitchen, "admin": admin} {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("%s: failed to unmarshal: %v", name, err)
			}
			if received.Type != "employee_order.updated" {
				t.Errorf("%s: expected type 'employee_order.updated', got '%s'", name, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s client did not receive message", name)
		}
	}

	select {
	case <-nurse.send:
		t.Fatal("nurse client should not have received the event")
	case <-time.After(50 * time.Millisecond):
		// Expected
	}
}

func TestBroadcastReachesAllClientsInRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, enum.UserRoleDelivery)
	client2 := mockClient(hub, enum.UserRoleDelivery)
	client3 := mockClient(hub, enum.UserRoleDelivery)

	// Register all clients to same room
	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	// Broadcast event
	testPayload := json.RawMessage(`{"status":"OUT_FOR_DELIVERY"}`)
	event := Event{
		Type:    "delivery.updated",
		Payload: testPayload,
	}
	hub.BroadcastToRoles([]string{enum.UserRoleDelivery}, event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "delivery.updated" {
				t.Errorf("client%d: expected type 'delivery.updated', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, enum.UserRoleNurse)
	client2 := mockClient(hub, enum.UserRoleNurse)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[enum.UserRoleNurse]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[enum.UserRoleNurse]))
	}
	hub.mu.RUnlock()

	// Unregister first client
	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[enum.UserRoleNurse]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[enum.UserRoleNurse]))
	}
	hub.mu.RUnlock()

	// Unregister second client
	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[enum.UserRoleNurse] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Create a client for the kitchen room only
	kitchen := mockClient(hub, enum.UserRoleKitchen)
	hub.register <- kitchen
	time.Sleep(10 * time.Millisecond)

	// Broadcast to a room nobody joined
	event := Event{
		Type:    "delivery.updated",
		Payload: json.RawMessage(`{"test":"data"}`),
	}
	hub.BroadcastToRoles([]string{enum.UserRoleDelivery}, event)

	// kitchen should NOT receive anything
	select {
	case <-kitchen.send:
		t.Fatal("client should not receive message for a different room")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
