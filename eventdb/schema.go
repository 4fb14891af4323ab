// Copyright (c) 2026 The LockLedger developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

const eventTableSchema = `
create table if not exists event (
	blockNumber decimal(32,0),
	blockTime decimal(32,0),
	eventIndex integer,
	name text,
	account blob(20),
	counterparty blob(20),
	depositID integer,
	amount text,
	tier text
);

CREATE INDEX if not exists blockNumberIndex on event(blockNumber);
CREATE INDEX if not exists accountIndex on event(account);
CREATE INDEX if not exists nameIndex on event(name);
`
